package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/davicafu/hexapulse/internal/watch/domain"
)

// ResultFileName es el artefacto JSON que acompaña a cada ejecución.
const ResultFileName = "analysis_results.json"

// RunStorage es un adaptador outbound que guarda cada ejecución en
// <processedRoot>/<runID>/: los ficheros de entrada y el resultado.
type RunStorage struct {
	processedRoot string
	mu            sync.Mutex
	log           *zap.Logger
}

var _ domain.RunStorage = (*RunStorage)(nil)

func NewRunStorage(processedRoot string, log *zap.Logger) *RunStorage {
	return &RunStorage{processedRoot: processedRoot, log: log}
}

func (s *RunStorage) RunDir(runID string) string {
	return filepath.Join(s.processedRoot, filepath.Base(runID))
}

// ArchiveFiles mueve los ficheros a la carpeta de la ejecución. Un fallo se
// registra y se sigue con el resto.
func (s *RunStorage) ArchiveFiles(ctx context.Context, runID string, paths []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	var moved []string
	var errs []error
	for _, src := range paths {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		dst := filepath.Join(dir, filepath.Base(src))
		if err := moveFile(src, dst); err != nil {
			s.log.Warn("No se pudo mover el fichero procesado",
				zap.String("file", src), zap.String("run_id", runID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(src), err))
			continue
		}
		moved = append(moved, dst)
	}

	return moved, errors.Join(errs...)
}

// SaveResult escribe (sobrescribiendo) el resultado indentado junto a los ficheros.
func (s *RunStorage) SaveResult(_ context.Context, runID string, result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ResultFileName), data, 0o644)
}

// moveFile intenta un rename y, si origen y destino están en distinto
// sistema de ficheros, copia y borra.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
