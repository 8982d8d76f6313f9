package rowstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Open constructs the configured backend: "csv" or "sheets".
func Open(ctx context.Context, backend, csvPath, spreadsheetID, credentialsPath string, logger *zap.Logger) (RowStore, error) {
	switch backend {
	case "csv", "":
		return NewCSVStore(csvPath, logger)
	case "sheets":
		return NewSheetStore(ctx, spreadsheetID, credentialsPath, logger)
	default:
		return nil, fmt.Errorf("unknown contact backend %q", backend)
	}
}
