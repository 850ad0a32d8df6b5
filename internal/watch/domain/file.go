package domain

import (
	"context"
	"fmt"
	"regexp"
	"time"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

// BatchSource identifica en el payload los lotes que vienen del directorio vigilado.
const BatchSource = "directory_monitor"

type ChangeKind string

const (
	// FileChanged cubre altas y modificaciones: el contenido ya está leído.
	FileChanged ChangeKind = "file:changed"
	FileDeleted ChangeKind = "file:deleted"
)

// FileEvent es un cambio ya asentado (tras el debounce) y clasificado.
// Data es el JSON decodificado o, si no se pudo, el contenido en bruto.
type FileEvent struct {
	Kind       ChangeKind            `json:"kind"`
	Path       string                `json:"path"`
	Name       string                `json:"name"`
	Extension  string                `json:"extension"`
	Category   sharedDomain.Category `json:"type"`
	Size       int64                 `json:"size"`
	Modified   time.Time             `json:"modified"`
	Data       interface{}           `json:"data,omitempty"`
	DetectedAt time.Time             `json:"detectedAt"`
}

// FileSubscription es el handle que devuelve FileSource.Subscribe.
type FileSubscription interface {
	Events() <-chan FileEvent
	Done() <-chan struct{}
	Close()
}

// FileSource emite los cambios de un árbol de directorios.
type FileSource interface {
	Subscribe(buffer int) FileSubscription
}

// RunStorage guarda los artefactos de cada ejecución disparada.
type RunStorage interface {
	// ArchiveFiles mueve los ficheros a la carpeta de la ejecución. Un fallo en
	// un fichero no impide mover el resto; los fallos vuelven unidos en err.
	ArchiveFiles(ctx context.Context, runID string, paths []string) (moved []string, err error)
	SaveResult(ctx context.Context, runID string, result interface{}) error
}

type FileSummary struct {
	Name     string                `json:"name"`
	Type     sharedDomain.Category `json:"type"`
	Size     int64                 `json:"size"`
	Modified time.Time             `json:"modified"`
}

// BatchPayload es lo que recibe el motor de análisis por cada lote de ficheros.
type BatchPayload struct {
	Files      []FileSummary                           `json:"files"`
	Timestamp  time.Time                               `json:"timestamp"`
	Source     string                                  `json:"source"`
	Aggregated map[sharedDomain.Category][]interface{} `json:"aggregated"`
}

// NewBatchPayload agrupa el contenido de los ficheros por categoría.
func NewBatchPayload(files []FileEvent, now time.Time) BatchPayload {
	payload := BatchPayload{
		Files:      make([]FileSummary, 0, len(files)),
		Timestamp:  now,
		Source:     BatchSource,
		Aggregated: make(map[sharedDomain.Category][]interface{}),
	}
	for _, f := range files {
		payload.Files = append(payload.Files, FileSummary{Name: f.Name, Type: f.Category, Size: f.Size, Modified: f.Modified})
		payload.Aggregated[f.Category] = append(payload.Aggregated[f.Category], f.Data)
	}
	return payload
}

// DirectorySnapshot es la foto del directorio vigilado.
type DirectorySnapshot struct {
	Files        []FileSummary `json:"files"`
	TotalFiles   int           `json:"totalFiles"`
	TotalSize    int64         `json:"totalSize"`
	LastModified time.Time     `json:"lastModified"`
}

// El token acepta letras, dígitos y "_": startup_acme_co -> acme_co.
var subjectPattern = regexp.MustCompile(`(?i)startup[_-](\w+)`)

// SubjectFromNames busca "startup_<id>" o "startup-<id>" en los nombres; el
// primero que coincide gana. Si ninguno coincide se genera auto_<ms>.
func SubjectFromNames(names []string, now time.Time) string {
	for _, name := range names {
		if m := subjectPattern.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	return fmt.Sprintf("auto_%d", now.UnixMilli())
}
