package report

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// calculateChecksum calculates SHA256 checksum of the file
func calculateChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func describe(path string, rows int64) (*FileMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	checksum, err := calculateChecksum(path)
	if err != nil {
		return nil, err
	}
	return &FileMetadata{
		Path:     path,
		Size:     info.Size(),
		Checksum: checksum,
		RowCount: rows,
	}, nil
}
