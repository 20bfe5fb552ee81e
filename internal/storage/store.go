// Package storage provides blob storage for input documents and generated artifacts.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// BlobStore reads and writes opaque bytes by key
type BlobStore interface {
	// Get returns the bytes stored at key, or a *types.NotFoundError
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores data at key, replacing any existing object
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Exists reports whether an object is stored at key
	Exists(ctx context.Context, key string) (bool, error)
}

// DefaultUploadCategory is used when an upload names no category
const DefaultUploadCategory = "approved"

// DefaultOutputPrefix is the artifact folder under each tenant
const DefaultOutputPrefix = "generated"

// Content types for stored objects
const (
	ContentTypeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF   = "application/pdf"
	ContentTypeText  = "text/plain; charset=utf-8"
	ContentTypeOctet = "application/octet-stream"
)

// ContentTypeFor maps a file extension (with or without dot) to a content type
func ContentTypeFor(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "docx":
		return ContentTypeDOCX
	case "pdf":
		return ContentTypePDF
	case "txt", "text":
		return ContentTypeText
	case "html", "htm":
		return "text/html; charset=utf-8"
	default:
		return ContentTypeOctet
	}
}

// UploadKey builds {tenantId}/{category}/{uuid}-{fileName}
func UploadKey(tenantID, category, fileName string) string {
	return UploadKeyWithID(tenantID, category, uuid.NewString(), fileName)
}

// UploadKeyWithID builds an upload key with a caller-chosen unique id
func UploadKeyWithID(tenantID, category, id, fileName string) string {
	if category == "" {
		category = DefaultUploadCategory
	}
	return fmt.Sprintf("%s/%s/%s-%s", tenantID, category, id, path.Base(fileName))
}

// ArtifactKey builds {tenantId}/{outputPrefix}/{outputId}.{ext}
func ArtifactKey(tenantID, outputPrefix, outputID, ext string) string {
	if outputPrefix == "" {
		outputPrefix = DefaultOutputPrefix
	}
	return fmt.Sprintf("%s/%s/%s.%s", tenantID, outputPrefix, outputID, strings.TrimPrefix(ext, "."))
}

// TenantOf returns the tenant segment of a key
func TenantOf(key string) string {
	tenant, _, _ := strings.Cut(key, "/")
	return tenant
}

// ValidateKey rejects keys that are empty, absolute, or escape their prefix
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid key %q", key)
		}
	}
	return nil
}
