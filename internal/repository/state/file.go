package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	standgrpc "github.com/oshokin/autostand/internal/api/grpc/stand"
	"github.com/oshokin/autostand/internal/capability"
	"github.com/oshokin/autostand/internal/config"
	domain "github.com/oshokin/autostand/internal/domain/stand"
)

// Snapshot is the persisted simulator state.
type Snapshot struct {
	Stands    []*domain.State
	UpdatedAt time.Time
}

// Repository defines persistence operations for the simulator state.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) so the file has
// the same field names as the wire.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")

	errMalformed = errors.New("malformed state file")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&doc)
}

// Save writes the snapshot to disk.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := toStruct(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromStruct converts the stored document into a Snapshot.
func fromStruct(doc *structpb.Struct) (*Snapshot, error) {
	fields := doc.AsMap()
	snapshot := new(Snapshot)

	if raw, ok := fields["updated_at"].(string); ok && raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: updated_at: %w", errMalformed, err)
		}

		snapshot.UpdatedAt = ts
	}

	stands, _ := fields["stands"].([]any)
	for i, item := range stands {
		object, _ := item.(map[string]any)

		s, ok := capability.DecodeState(object)
		if !ok {
			return nil, fmt.Errorf("%w: stands[%d]", errMalformed, i)
		}

		snapshot.Stands = append(snapshot.Stands, s)
	}

	return snapshot, nil
}

// toStruct converts a Snapshot into the stored document.
func toStruct(snapshot *Snapshot) (*structpb.Struct, error) {
	stands := make([]any, 0, len(snapshot.Stands))
	for _, s := range snapshot.Stands {
		stands = append(stands, standgrpc.StateFields(s))
	}

	var updatedAt string
	if !snapshot.UpdatedAt.IsZero() {
		updatedAt = snapshot.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	return structpb.NewStruct(map[string]any{
		"updated_at": updatedAt,
		"stands":     stands,
	})
}
