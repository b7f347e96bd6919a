package foundry

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"foundrygate/internal/types"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/blake3"
)

const artifactPrefix = "foundrygate-request-"

// artifactSchema describes {"messages":[{"role":..,"content":..}]}.
const artifactSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["messages"],
  "additionalProperties": false,
  "properties": {
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "additionalProperties": false,
        "properties": {
          "role": {"type": "string"},
          "content": {"type": "string"}
        }
      }
    }
  }
}`

var compiledArtifactSchema = mustCompileArtifactSchema()

func mustCompileArtifactSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("artifact.json", strings.NewReader(artifactSchema)); err != nil {
		panic(fmt.Sprintf("artifact schema: %v", err))
	}
	s, err := c.Compile("artifact.json")
	if err != nil {
		panic(fmt.Sprintf("artifact schema: %v", err))
	}
	return s
}

type artifactDocument struct {
	Messages []types.ConversationTurn `json:"messages"`
}

// Artifact is a request file on disk, shared by both tiers of one run.
type Artifact struct {
	Path string

	// Digest is the BLAKE3-256 hex digest of the file contents.
	Digest string

	Size int
}

// EncodeRequest serializes the turns of req in artifact form.
func EncodeRequest(req types.CanonicalRequest) ([]byte, error) {
	doc := artifactDocument{Messages: req.Clone().Turns}
	return json.Marshal(doc)
}

// Digest returns the BLAKE3-256 hex digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// WriteArtifact serializes req into a new, uniquely named file in dir (or the
// system temp dir when dir is empty). The file is created exclusively so
// concurrent runs can never share one.
func WriteArtifact(dir string, req types.CanonicalRequest) (*Artifact, error) {
	data, err := EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, artifactPrefix+uuid.NewString()+".json")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", withoutPath(err))
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write artifact: %w", withoutPath(err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close artifact: %w", withoutPath(err))
	}

	return &Artifact{Path: path, Digest: Digest(data), Size: len(data)}, nil
}

// withoutPath strips the file name from a *fs.PathError so the artifact
// location does not leak into caller-visible reasons.
func withoutPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}

// Remove deletes the artifact. Removing an already-absent file succeeds.
func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

// ReadArtifact loads and validates the request file at path.
func ReadArtifact(path string) ([]types.ConversationTurn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeRequest(data)
}

// DecodeRequest validates data against the artifact schema and returns its
// turns in order.
func DecodeRequest(data []byte) ([]types.ConversationTurn, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if err := compiledArtifactSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("invalid artifact: %w", err)
	}

	var doc artifactDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if doc.Messages == nil {
		doc.Messages = []types.ConversationTurn{}
	}
	return doc.Messages, nil
}
