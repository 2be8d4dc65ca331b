package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for more changes before
// processing a file.
const DefaultDebounce = 500 * time.Millisecond

// DefaultIncludeGlobs match the document formats the ingest registry
// understands, plus .url link files routed through the web importer.
var DefaultIncludeGlobs = []string{
	"**/*.txt",
	"**/*.md",
	"**/*.pdf",
	"**/*.doc",
	"**/*.docx",
	"**/*.url",
}

// DefaultExcludeGlobs skip hidden files and directories.
var DefaultExcludeGlobs = []string{
	"**/.*",
	"**/.*/**",
}

// WatcherConfig configures the intake directory watcher. Zero fields fall
// back to defaults.
type WatcherConfig struct {
	// Dir is the intake drop directory. Files land under
	// <dir>/<project_id>/<file>.
	Dir string

	// Debounce is how long to wait for more changes before processing.
	Debounce time.Duration

	// Include and Exclude are doublestar globs matched against the path
	// relative to Dir.
	Include []string
	Exclude []string

	// Importer handles .url link files. Nil disables the route.
	Importer *Importer

	Logger *slog.Logger
}

// Watcher ingests requirements documents dropped into the intake
// directory. Each file is routed to the project named by its parent
// directory; the project's own processing mode and provider apply.
type Watcher struct {
	cfg     WatcherConfig
	manager *Manager
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change detection
	hashMu sync.RWMutex
	hashes map[string]string
}

// NewWatcher creates an intake watcher feeding the given manager.
func NewWatcher(cfg WatcherConfig, manager *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultIncludeGlobs
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = DefaultExcludeGlobs
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		cfg:     cfg,
		manager: manager,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
	}, nil
}

// Start begins watching the intake directory. It returns once watches are
// in place; processing runs in a background goroutine until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return err
	}

	if err := w.addWatchesRecursive(w.cfg.Dir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Intake watcher started",
		"dir", w.cfg.Dir,
		"debounce", w.cfg.Debounce,
		"include", w.cfg.Include)

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// addWatchesRecursive adds watches to all directories under root.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && base != "." {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent records a single fsnotify event for the next flush.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	relPath, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		return
	}

	if !w.matches(relPath) {
		// New project directories need a watch of their own.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Intake change detected", "path", relPath, "op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory.
func (w *Watcher) handleNewDirectory(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
}

// matches reports whether the relative path passes the include and exclude
// globs.
func (w *Watcher) matches(relPath string) bool {
	rel := filepath.ToSlash(relPath)

	for _, pattern := range w.cfg.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range w.cfg.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// flushPending ingests accumulated changes.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, err := filepath.Rel(w.cfg.Dir, path)
		if err != nil {
			continue
		}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			// Nothing to un-ingest; just forget the hash.
			w.forgetHash(relPath)
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.forgetHash(relPath)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read intake file", "path", relPath, "error", err)
			continue
		}

		// Editors fire several events per save; the hash keeps each
		// version from being ingested more than once.
		hash := contentHash(content)
		if w.seen(relPath, hash) {
			continue
		}
		w.rememberHash(relPath, hash)

		w.ingest(ctx, relPath, content)
	}
}

// ingest routes one intake file to its project.
func (w *Watcher) ingest(ctx context.Context, relPath string, content []byte) {
	parts := strings.SplitN(filepath.ToSlash(relPath), "/", 2)
	if len(parts) < 2 {
		w.logger.Warn("Ignoring intake file outside a project directory", "path", relPath)
		return
	}
	projectID := parts[0]

	if strings.EqualFold(filepath.Ext(relPath), ".url") {
		w.importLink(ctx, projectID, relPath, content)
		return
	}

	_, err := w.manager.IngestToProject(ctx, projectID, Upload{
		Filename: filepath.Base(relPath),
		Content:  content,
	})
	if err != nil {
		w.logger.Error("Intake ingestion failed",
			"path", relPath,
			"project_id", projectID,
			"error", err)
		return
	}

	w.logger.Info("Ingested intake document", "path", relPath, "project_id", projectID)
}

// importLink fetches the page a .url file points at and saves its readable
// text as the project's requirements draft.
func (w *Watcher) importLink(ctx context.Context, projectID, relPath string, content []byte) {
	if w.cfg.Importer == nil {
		w.logger.Warn("No importer configured, ignoring link file", "path", relPath)
		return
	}

	target := linkTarget(content)
	if target == "" {
		w.logger.Warn("Link file has no URL", "path", relPath)
		return
	}

	result, err := w.cfg.Importer.ImportURL(ctx, target)
	if err != nil {
		w.logger.Error("Link import failed",
			"path", relPath,
			"project_id", projectID,
			"url", target,
			"error", err)
		return
	}

	if err := w.manager.SaveDraft(ctx, projectID, result.Text); err != nil {
		w.logger.Error("Failed to save imported draft",
			"path", relPath,
			"project_id", projectID,
			"error", err)
		return
	}

	w.logger.Info("Imported intake link",
		"path", relPath,
		"project_id", projectID,
		"title", result.Title)
}

// linkTarget extracts the URL from a .url file: the first non-empty line,
// with the Windows internet-shortcut URL= prefix and section header
// tolerated.
func linkTarget(content []byte) string {
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		return strings.TrimPrefix(line, "URL=")
	}
	return ""
}

func (w *Watcher) seen(relPath, hash string) bool {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	return w.hashes[relPath] == hash
}

func (w *Watcher) rememberHash(relPath, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[relPath] = hash
}

func (w *Watcher) forgetHash(relPath string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	delete(w.hashes, relPath)
}

func contentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
