package config

import "path/filepath"

const (
	dataFolderVar = "AUTH_DATA_FOLDER"
	passphraseVar = "AUTH_STORE_PASSPHRASE"

	databaseFile = "auth.db"
)

type StorageConfig interface {
	GetDataFolder() string
	GetDatabasePath() string
	GetStorePassphrase() string
}

type Storage struct {
	src *source
}

var _ StorageConfig = Storage{}

func (s Storage) GetDataFolder() string {
	return s.src.get(dataFolderVar, "./data")
}

func (s Storage) GetDatabasePath() string {
	return filepath.Join(s.GetDataFolder(), databaseFile)
}

// GetStorePassphrase returns the passphrase for the encrypted store. Empty
// means the caller must prompt for one.
func (s Storage) GetStorePassphrase() string {
	return s.src.get(passphraseVar, "")
}
