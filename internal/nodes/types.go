// Package nodes turns CMS response payloads into site nodes: it assigns
// stable identifiers to relations and downloads referenced files.
package nodes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sanixdarker/strapisource/pkg/schema"
)

const (
	// TypenameKey discriminates response objects.
	TypenameKey = "__typename"
	// FileNodeType is the node type recorded for downloaded files.
	FileNodeType = "File"
)

// IDGenerator maps a stable key to a node id. It must return the same id for
// the same key for the duration of a build.
type IDGenerator func(key string) string

// NewIDGenerator returns a UUID v5 generator scoped to namespace, so two
// projects sourcing the same CMS ids never collide.
func NewIDGenerator(namespace string) IDGenerator {
	space := uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace))
	return func(key string) string {
		return uuid.NewSHA1(space, []byte(key)).String()
	}
}

// EntityKey is the un-hashed node key for an entity: Strapi<Entity>-<remoteID>.
func EntityKey(entity, remoteID string) string {
	return schema.TypePrefix + entity + "-" + remoteID
}

// EntityType is the node type for an entity.
func EntityType(entity string) string {
	return schema.TypePrefix + entity
}

// FileRequest asks an Acquirer for a remote file.
type FileRequest struct {
	URL          string
	ParentNodeID string
}

// FileNode is a downloaded file.
type FileNode struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Path         string    `json:"path"`
	MediaType    string    `json:"mediaType,omitempty"`
	Size         int64     `json:"size"`
	Digest       string    `json:"digest"`
	ParentNodeID string    `json:"parent,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Acquirer fetches remote files. A nil node with a nil error means the file
// could not be acquired and is simply left out; a non-nil error aborts the
// caller.
type Acquirer interface {
	Acquire(ctx context.Context, req FileRequest) (*FileNode, error)
}

// Node is a processed entity ready for the node store.
type Node struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	RemoteID  string         `json:"strapiId"`
	Parent    string         `json:"parent,omitempty"`
	Content   map[string]any `json:"content"`
	Digest    string         `json:"contentDigest"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}
