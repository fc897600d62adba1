package reports

import (
	"context"

	"github.com/bryanwahyu/iqexport/internal/domain/apps"
)

// Source port (interface untuk resolve + fetch report dari server).
// The int return is the number of transport attempts the call consumed,
// recorded in the FetchOutcome.
type Source interface {
	// LatestReport resolves the newest report of one application.
	// A nil Info with nil error means the application has never been scanned.
	LatestReport(ctx context.Context, app apps.Application) (*Info, int, error)

	// RawReport fetches the raw payload for a resolved report.
	RawReport(ctx context.Context, app apps.Application, info Info) (*RawReport, int, error)
}

// Serializer port (interface untuk flatten payload ke file)
type Serializer interface {
	// Serialize writes one CSV file and returns its path. The write is
	// atomic: the file appears complete or not at all.
	Serialize(app apps.Application, info Info, report *RawReport) (string, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}
