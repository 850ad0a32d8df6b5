package filesystem

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
	"github.com/davicafu/hexapulse/internal/shared/infra/debounce"
	"github.com/davicafu/hexapulse/internal/watch/domain"
)

// FileWatcher vigila un árbol de directorios con fsnotify, espera a que cada
// ruta se asiente y emite el cambio ya leído y clasificado.
type FileWatcher struct {
	root      string
	allowed   map[string]struct{}
	watcher   *fsnotify.Watcher
	debouncer *debounce.Debouncer[fsnotify.Op]
	log       *zap.Logger

	subsMu sync.RWMutex
	subs   map[*subscription]struct{}

	mu       sync.Mutex
	watching bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

var _ domain.FileSource = (*FileWatcher)(nil)

// NewFileWatcher no toca el disco hasta Start. extensions incluye el punto (".json").
func NewFileWatcher(root string, extensions []string, debounceDelay time.Duration, log *zap.Logger) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	w := &FileWatcher{
		root:    root,
		allowed: allowed,
		watcher: fw,
		log:     log,
		subs:    make(map[*subscription]struct{}),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	w.debouncer = debounce.NewDebouncer(debounceDelay, w.settle)
	return w, nil
}

// Start crea el directorio raíz si no existe, registra todos los
// subdirectorios y arranca el bucle de eventos.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	if err := w.addRecursive(w.root, false); err != nil {
		return err
	}

	w.log.Info("👀 Vigilando directorio", zap.String("path", w.root), zap.Duration("debounce", w.debouncer.Delay()))

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop cancela los temporizadores pendientes, cierra fsnotify y las suscripciones.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
		_ = w.watcher.Close()
		w.wg.Wait()
		w.closeSubscriptions()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		w.log.Info("Vigilancia de directorio detenida", zap.String("path", w.root))
	})
}

// addRecursive vigila root y sus subdirectorios. Con notifyFiles además
// notifica los ficheros que ya contienen: un directorio movido o copiado
// de golpe a la bandeja no genera eventos propios para su contenido.
func (w *FileWatcher) addRecursive(root string, notifyFiles bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if notifyFiles && w.accepts(path) {
				w.debouncer.Notify(path, fsnotify.Create)
			}
			return nil
		}
		if path != root && ignoredName(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("No se pudo vigilar el directorio", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *FileWatcher) processEvents(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Error de fsnotify", zap.Error(err))
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !ignoredName(info.Name()) {
				w.log.Debug("Nuevo subdirectorio", zap.String("path", event.Name))
				_ = w.addRecursive(event.Name, true)
			}
			return
		}
	}

	if !w.accepts(event.Name) {
		return
	}
	w.debouncer.Notify(event.Name, event.Op)
}

// settle se ejecuta cuando la ruta lleva el delay sin cambios.
func (w *FileWatcher) settle(path string, op fsnotify.Op) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) && (op.Has(fsnotify.Rename) || op.Has(fsnotify.Remove)) {
			w.emit(domain.FileEvent{
				Kind:       domain.FileDeleted,
				Path:       path,
				Name:       filepath.Base(path),
				Extension:  strings.ToLower(filepath.Ext(path)),
				Category:   sharedDomain.Classify(path),
				DetectedAt: w.now(),
			})
		}
		return
	}
	if info.IsDir() {
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("No se pudo leer el fichero", zap.String("path", path), zap.Error(err))
		return
	}

	ext := strings.ToLower(filepath.Ext(path))
	evt := domain.FileEvent{
		Kind:       domain.FileChanged,
		Path:       path,
		Name:       info.Name(),
		Extension:  ext,
		Category:   sharedDomain.Classify(path),
		Size:       info.Size(),
		Modified:   info.ModTime(),
		Data:       parseContent(ext, content, w.log),
		DetectedAt: w.now(),
	}

	w.log.Info("📄 Fichero asentado",
		zap.String("file", evt.Name),
		zap.String("type", string(evt.Category)),
		zap.Int64("size", evt.Size),
	)
	w.emit(evt)
}

// parseContent decodifica JSON; si falla, o el formato no es estructurado,
// devuelve el texto en bruto.
func parseContent(ext string, content []byte, log *zap.Logger) interface{} {
	if ext == ".json" {
		var parsed interface{}
		err := json.Unmarshal(content, &parsed)
		if err == nil {
			return parsed
		}
		log.Debug("JSON inválido, se usa el contenido en bruto", zap.Error(err))
	}
	return string(content)
}

func (w *FileWatcher) accepts(path string) bool {
	name := filepath.Base(path)
	if ignoredName(name) {
		return false
	}
	_, ok := w.allowed[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ignoredName descarta ocultos y temporales de editor.
func ignoredName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

// Snapshot lista los ficheros aceptados que hay ahora mismo en el árbol.
func (w *FileWatcher) Snapshot() (domain.DirectorySnapshot, error) {
	var snap domain.DirectorySnapshot
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != w.root && ignoredName(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.accepts(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap.Files = append(snap.Files, domain.FileSummary{
			Name:     d.Name(),
			Type:     sharedDomain.Classify(d.Name()),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
		snap.TotalSize += info.Size()
		if info.ModTime().After(snap.LastModified) {
			snap.LastModified = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return domain.DirectorySnapshot{}, err
	}

	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Name < snap.Files[j].Name })
	snap.TotalFiles = len(snap.Files)
	return snap, nil
}
