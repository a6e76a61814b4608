package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	FilePermissions os.FileMode = 0600
	DirPermissions  os.FileMode = 0700
)

// FileSystemStore implements Store on the local filesystem. Envelope and
// key file artifacts live side by side in a single directory:
//
//	basePath/
//	├── report.pdf.ren      # encrypted file
//	├── report.pdf.renkey   # companion key file (Key-Wrap Mode only)
//	└── notes.txt.ren       # Password-Direct envelope, no key file
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore initializes and returns a new instance of FileSystemStore
func NewFileSystemStore(basePath string) (*FileSystemStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(basePath, DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &FileSystemStore{basePath: basePath}, nil
}

// NewFileSystemStoreFromConfig creates a FileSystemStore from StoreConfig
func NewFileSystemStoreFromConfig(config StoreConfig) (*FileSystemStore, error) {
	basePath, ok := config.Config["base_path"].(string)
	if !ok {
		return nil, fmt.Errorf("base_path is required for filesystem store")
	}

	return NewFileSystemStore(basePath)
}

func (fs *FileSystemStore) envelopePath(name string) string {
	return filepath.Join(fs.basePath, name+EnvelopeExt)
}

func (fs *FileSystemStore) keyFilePath(name string) string {
	return filepath.Join(fs.basePath, name+KeyFileExt)
}

func (fs *FileSystemStore) SaveEnvelope(name string, envelope []byte) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}
	if err := writeSecureFile(fs.envelopePath(name), envelope, FilePermissions); err != nil {
		return fmt.Errorf("failed to save envelope %s: %w", name, err)
	}
	return nil
}

func (fs *FileSystemStore) LoadEnvelope(name string) ([]byte, error) {
	if err := validateArtifactName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fs.envelopePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("envelope %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load envelope %s: %w", name, err)
	}
	return data, nil
}

func (fs *FileSystemStore) EnvelopeExists(name string) (bool, error) {
	if err := validateArtifactName(name); err != nil {
		return false, err
	}
	return fileExists(fs.envelopePath(name))
}

func (fs *FileSystemStore) SaveKeyFile(name string, keyFileText string) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}
	if err := writeSecureFile(fs.keyFilePath(name), []byte(keyFileText), FilePermissions); err != nil {
		return fmt.Errorf("failed to save key file %s: %w", name, err)
	}
	return nil
}

func (fs *FileSystemStore) LoadKeyFile(name string) (string, error) {
	if err := validateArtifactName(name); err != nil {
		return "", err
	}

	data, err := os.ReadFile(fs.keyFilePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("key file %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("failed to load key file %s: %w", name, err)
	}
	return string(data), nil
}

func (fs *FileSystemStore) KeyFileExists(name string) (bool, error) {
	if err := validateArtifactName(name); err != nil {
		return false, err
	}
	return fileExists(fs.keyFilePath(name))
}

// List enumerates envelopes in the store, sorted by name.
func (fs *FileSystemStore) List() ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArtifactInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var artifacts []ArtifactInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), EnvelopeExt) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), EnvelopeExt)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		hasKeyFile, _ := fileExists(fs.keyFilePath(name))
		artifacts = append(artifacts, ArtifactInfo{
			Name:       name,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
			HasKeyFile: hasKeyFile,
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})
	return artifacts, nil
}

// Delete removes an envelope and its companion key file, if any.
func (fs *FileSystemStore) Delete(name string) error {
	if err := validateArtifactName(name); err != nil {
		return err
	}

	exists, err := fileExists(fs.envelopePath(name))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("envelope %s: %w", name, ErrNotFound)
	}

	if err = os.Remove(fs.envelopePath(name)); err != nil {
		return fmt.Errorf("failed to delete envelope %s: %w", name, err)
	}

	// Companion key file is optional
	if err = os.Remove(fs.keyFilePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file %s: %w", name, err)
	}
	return nil
}

func (fs *FileSystemStore) Ping() error {
	if _, err := os.Stat(fs.basePath); err != nil {
		return fmt.Errorf("artifact directory not accessible: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) GetType() string {
	return string(StoreTypeFileSystem)
}

// writeSecureFile writes data atomically: temp file, sync, chmod, rename.
func writeSecureFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err = tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
