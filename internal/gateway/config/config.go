package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const contextIDFile = "context_id"

type Config struct {
	Port string
	Env  string

	// ScratchRoot holds caches of unsaved documents and session state.
	ScratchRoot string
	// ContextID keeps cache folders of different sessions apart.
	ContextID string

	DocumentStoreDSN    string
	DocumentStoreSQLite string
	DocumentStorePath   string

	EngineCmd         string
	ParserCmd         string
	HeaderHTML        string
	ChunkOutputPrefix string

	// AllowedOrigins restricts browser origins; empty allows all.
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	port := fs.String("port", ":8081", "server port")
	scratch := fs.String("scratch", "", "session scratch directory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := firstNonEmpty(os.Getenv("APP_ENV"), "local")
	scratchRoot := firstNonEmpty(*scratch, os.Getenv("SCRATCH_ROOT"), filepath.Join(os.TempDir(), "nbcache"))
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	contextID, err := resolveContextID(scratchRoot, os.Getenv("CONTEXT_ID"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                *port,
		Env:                 env,
		ScratchRoot:         scratchRoot,
		ContextID:           contextID,
		DocumentStoreDSN:    strings.TrimSpace(os.Getenv("DOCUMENT_STORE_PG_DSN")),
		DocumentStoreSQLite: strings.TrimSpace(os.Getenv("DOCUMENT_STORE_SQLITE_PATH")),
		DocumentStorePath:   firstNonEmpty(os.Getenv("DOCUMENT_STORE_PATH"), filepath.Join(scratchRoot, "documents.json")),
		EngineCmd:           strings.TrimSpace(os.Getenv("ENGINE_CMD")),
		ParserCmd:           strings.TrimSpace(os.Getenv("RNB_PARSER_CMD")),
		HeaderHTML:          strings.TrimSpace(os.Getenv("NOTEBOOK_HEADER_HTML")),
		ChunkOutputPrefix:   strings.Trim(firstNonEmpty(os.Getenv("CHUNK_OUTPUT_PREFIX"), "chunk_output"), "/"),
		AllowedOrigins:      splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}, nil
}

// resolveContextID prefers an explicit id, then the one persisted under the
// scratch root, and otherwise mints and persists a new one so saved-document
// caches are found again after a restart.
func resolveContextID(scratchRoot, explicit string) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	path := filepath.Join(scratchRoot, contextIDFile)
	raw, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("read context id: %w", err)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist context id: %w", err)
	}
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
