package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/labdigest/internal/source"
)

// BillCodeFile is one digest rendered for the billing system import.
type BillCodeFile struct {
	DigestID string
	Name     string
	Content  []byte
}

// BillCodeFileName derives the export file name from a digest name.
func BillCodeFileName(digestName string) string {
	prefix := []rune(digestName)
	if len(prefix) > 7 {
		prefix = prefix[:7]
	}
	return fmt.Sprintf("TMI_%s_bill-code.txt", string(prefix))
}

// BillCodes renders one digest artifact as tab-separated text.
func (s *Service) BillCodes(ctx context.Context, digestID string) (BillCodeFile, error) {
	a, err := s.store.GetArtifact(ctx, digestID)
	if err != nil {
		return BillCodeFile{}, err
	}
	if a.Kind != KindDigest {
		return BillCodeFile{}, fmt.Errorf("%w: %s is a %s artifact, not a digest", ErrArtifactNotFound, digestID, a.Kind)
	}
	rows, err := s.store.ReadSheet(ctx, a.ID, SheetDigest)
	if err != nil {
		return BillCodeFile{}, fmt.Errorf("read digest %s: %w", a.ID, err)
	}
	return BillCodeFile{DigestID: a.ID, Name: BillCodeFileName(a.Name), Content: source.WriteTSV(rows)}, nil
}

// ExportBillCodes digests everything pending, then renders every digest.
func (s *Service) ExportBillCodes(ctx context.Context) ([]BillCodeFile, *RunReport, error) {
	report, err := s.DigestAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	digests, err := s.store.ListArtifacts(ctx, KindDigest)
	if err != nil {
		return nil, report, fmt.Errorf("list digests: %w", err)
	}
	files := make([]BillCodeFile, 0, len(digests))
	for _, d := range digests {
		f, err := s.BillCodes(ctx, d.ID)
		if err != nil {
			return nil, report, err
		}
		files = append(files, f)
	}
	return files, report, nil
}
