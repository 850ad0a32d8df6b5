package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/hexapulse/internal/shared/domain"
)

// ---------- Errores de dominio ----------
var (
	ErrStreamClosed   = errors.New("change stream closed")
	ErrMonitorStarted = errors.New("change monitor already started")
	ErrNoCollections  = errors.New("change monitor needs at least one collection")
)

// PayloadSource identifica en el payload los lotes que vienen de la base de datos.
const PayloadSource = "mongodb_monitor"

const (
	OpInsert  = "insert"
	OpUpdate  = "update"
	OpReplace = "replace"
)

// Document es un documento genérico tal como sale de la base de datos.
type Document map[string]interface{}

// RawChange es lo que entregan tanto el canal push como el sondeo.
type RawChange struct {
	Collection string
	Operation  string
	DocumentID string
	Document   Document
	Timestamp  time.Time
}

// DocumentChange es el cambio ya normalizado y clasificado.
type DocumentChange struct {
	Type       sharedDomain.Category `json:"type"`
	Collection string                `json:"collection"`
	Operation  string                `json:"operation"`
	DocumentID string                `json:"documentId"`
	SubjectID  string                `json:"subjectId,omitempty"`
	Document   Document              `json:"document"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Key identifica el documento dentro de un lote: colección + id.
func (c DocumentChange) Key() string {
	return c.Collection + ":" + c.DocumentID
}

// DetectionMode es el estado del canal de detección de una colección. Sólo
// avanza push-active -> push-failed -> poll-active; nunca vuelve atrás.
type DetectionMode string

const (
	PushActive DetectionMode = "push-active"
	PushFailed DetectionMode = "push-failed"
	PollActive DetectionMode = "poll-active"
)

// ChangeStream es una suscripción push abierta sobre una colección.
type ChangeStream interface {
	// Next bloquea hasta el siguiente cambio. Cualquier error es definitivo.
	Next(ctx context.Context) (RawChange, error)
	Close(ctx context.Context) error
}

// ChangeSource es el almacén vigilado.
type ChangeSource interface {
	Watch(ctx context.Context, collection string) (ChangeStream, error)
	// LatestMark devuelve la marca de agua inicial de la colección.
	LatestMark(ctx context.Context, collection string) (time.Time, error)
	// PollSince devuelve, en orden ascendente, los documentos posteriores a mark.
	PollSince(ctx context.Context, collection string, mark time.Time) ([]RawChange, error)
	RecentDocuments(ctx context.Context, collection string, limit int) ([]Document, error)
	// LatestDocument devuelve nil sin error si la colección está vacía.
	LatestDocument(ctx context.Context, collection string) (Document, error)
	InsertResult(ctx context.Context, collection string, doc Document) error
	Close(ctx context.Context) error
}

// ChangePayload es lo que recibe el motor de análisis por cada lote de cambios.
type ChangePayload struct {
	Source       string                                           `json:"source"`
	Timestamp    time.Time                                        `json:"timestamp"`
	TotalChanges int                                              `json:"totalChanges"`
	Changes      map[sharedDomain.Category][]DocumentChange       `json:"changes"`
	Aggregates   map[sharedDomain.Category]map[string]interface{} `json:"aggregated"`
}

var subjectKeys = []string{"subjectId", "subject_id", "startupId", "startup_id"}

// SubjectFromDocument devuelve el primer identificador de sujeto que lleve el documento.
func SubjectFromDocument(doc Document) string {
	for _, key := range subjectKeys {
		if v, ok := doc[key]; ok && v != nil {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// Sanitize copia el documento sin _id para enviarlo fuera.
func (d Document) Sanitize() map[string]interface{} {
	out := make(map[string]interface{}, len(d))
	for k, v := range d {
		if k == "_id" {
			continue
		}
		out[k] = v
	}
	return out
}
