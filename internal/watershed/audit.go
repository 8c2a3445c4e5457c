package watershed

import (
	"strings"

	"github.com/carceral-ecologies/pfas-cli/internal/model"
)

// Audit compares each point's independently reported coarse watershed
// code (a HUC-8, carried as a source attribute) against the HUC-12
// derived by spatial join, and returns the disagreements for manual
// review. Points missing either code are not disagreements.
func Audit(points []model.EnrichedPoint, reportedField string) []model.AuditRow {
	var rows []model.AuditRow
	for _, p := range points {
		reported := strings.TrimSpace(p.Attrs[reportedField])
		if reported == "" || p.HUC12 == "" {
			continue
		}
		if strings.HasPrefix(p.HUC12, reported) {
			continue
		}
		rows = append(rows, model.AuditRow{
			SourceType:   p.SourceType,
			ID:           p.ID,
			Name:         p.Name,
			ReportedHUC8: reported,
			DerivedHUC12: p.HUC12,
		})
	}
	return rows
}
