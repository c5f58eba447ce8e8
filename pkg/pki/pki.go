// Package pki loads the PEM material a wallet is provisioned with: the
// holder binding key and the IACA trust anchors.
package pki

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

func LoadPrivateKey(dataPath string) (*ecdsa.PrivateKey, error) {
	pemString, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemString)
	if block == nil || block.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	return x509.ParseECPrivateKey(block.Bytes)
}

func GetRootCertificate(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s, err: %v", path, err)
	}

	roots := x509.NewCertPool()

	if ok := roots.AppendCertsFromPEM(pem); !ok {
		return nil, fmt.Errorf("failed to load pem")
	}
	return roots, nil
}

func GetRootCertificates(path string) (*x509.CertPool, error) {
	pems, err := loadCertificatesFromDirectory(path)
	if err != nil {
		return nil, err
	}

	roots := x509.NewCertPool()

	for name, pem := range pems {
		if ok := roots.AppendCertsFromPEM(pem); !ok {
			fmt.Println("failed to load pem: " + name)
		}
	}
	return roots, nil
}

func loadCertificatesFromDirectory(dirPath string) (map[string][]byte, error) {
	pems := map[string][]byte{}

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		if strings.HasSuffix(file.Name(), ".pem") {
			filePath := filepath.Join(dirPath, file.Name())
			data, err := os.ReadFile(filePath)
			if err != nil {
				log.Printf("Failed to read file: %s, err: %v", filePath, err)
				continue
			}
			pems[file.Name()] = data
		}
	}
	return pems, nil
}
