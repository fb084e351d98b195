package mockapi

import (
	"context"
	"fmt"
	"time"

	"github.com/jpalmerr/inspectwatch/internal/api"
)

// MockUser is returned by every successful login.
var MockUser = api.User{
	ID:    "usr_mock_001",
	Name:  "Joao Silva",
	Email: "joao.silva@example.com",
	Role:  "inspector",
}

// Fixtures returns the evidence items the mock API is seeded with: three
// analysed, one pending and one whose last analysis failed.
func Fixtures() []Record {
	ts := func(s string) *time.Time {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		return &t
	}
	str := func(s string) *string { return &s }

	return []Record{
		{Detail: api.EvidenceDetail{
			Evidence: api.Evidence{
				ID:           "evi_mock_001",
				ProjectID:    "prj_mock_001",
				FileURL:      "https://images.unsplash.com/photo-1504917595217-d4dc5ebe6122?w=800",
				ThumbnailURL: "https://images.unsplash.com/photo-1504917595217-d4dc5ebe6122?w=200",
				Description:  str("Crack in the main corridor wall"),
				Status:       api.StatusCompleted,
				UploadedAt:   ts("2025-11-05T14:22:00Z"),
				AnalyzedAt:   ts("2025-11-05T14:25:30Z"),
				IssuesCount:  2,
			},
			Issues: []api.Issue{
				{
					ID:          "iss_mock_001",
					Type:        "structural_crack",
					Description: "Structural crack in the concrete wall, estimated length 80cm",
					Confidence:  0.87,
					Severity:    api.SeverityHigh,
				},
				{
					ID:          "iss_mock_002",
					Type:        "paint_damage",
					Description: "Peeling paint over an area of 2m2",
					Confidence:  0.72,
					Severity:    api.SeverityLow,
				},
			},
		}},
		{Detail: api.EvidenceDetail{
			Evidence: api.Evidence{
				ID:           "evi_mock_002",
				ProjectID:    "prj_mock_001",
				FileURL:      "https://images.unsplash.com/photo-1541888946425-d81bb19240f5?w=800",
				ThumbnailURL: "https://images.unsplash.com/photo-1541888946425-d81bb19240f5?w=200",
				Description:  str("Leak in the platform ceiling"),
				Status:       api.StatusCompleted,
				UploadedAt:   ts("2025-11-04T10:15:00Z"),
				AnalyzedAt:   ts("2025-11-04T10:18:45Z"),
				IssuesCount:  1,
			},
			Issues: []api.Issue{
				{
					ID:          "iss_mock_003",
					Type:        "water_damage",
					Description: "Moisture stains and possible infiltration in the ceiling",
					Confidence:  0.91,
					Severity:    api.SeverityHigh,
				},
			},
		}},
		{Detail: api.EvidenceDetail{
			Evidence: api.Evidence{
				ID:           "evi_mock_003",
				ProjectID:    "prj_mock_001",
				FileURL:      "https://images.unsplash.com/photo-1503387762-592deb58ef4e?w=800",
				ThumbnailURL: "https://images.unsplash.com/photo-1503387762-592deb58ef4e?w=200",
				Description:  str("Uneven floor near the escalator"),
				Status:       api.StatusPending,
				UploadedAt:   ts("2025-11-05T16:40:00Z"),
			},
			Issues: []api.Issue{},
		}},
		{Detail: api.EvidenceDetail{
			Evidence: api.Evidence{
				ID:           "evi_mock_004",
				ProjectID:    "prj_mock_001",
				FileURL:      "https://images.unsplash.com/photo-1581092918056-0c4c3acd3789?w=800",
				ThumbnailURL: "https://images.unsplash.com/photo-1581092918056-0c4c3acd3789?w=200",
				Description:  str("Exposed electrical installation"),
				Status:       api.StatusError,
				UploadedAt:   ts("2025-11-03T09:30:00Z"),
				AnalyzedAt:   ts("2025-11-03T09:33:15Z"),
			},
			Issues: []api.Issue{},
		}},
		{Detail: api.EvidenceDetail{
			Evidence: api.Evidence{
				ID:           "evi_mock_005",
				ProjectID:    "prj_mock_002",
				FileURL:      "https://images.unsplash.com/photo-1513467535987-fd81bc7d62f8?w=800",
				ThumbnailURL: "https://images.unsplash.com/photo-1513467535987-fd81bc7d62f8?w=200",
				Description:  str("Concrete structure of the station"),
				Status:       api.StatusCompleted,
				UploadedAt:   ts("2025-11-02T11:20:00Z"),
				AnalyzedAt:   ts("2025-11-02T11:23:10Z"),
				IssuesCount:  1,
			},
			Issues: []api.Issue{
				{
					ID:          "iss_mock_004",
					Type:        "surface_irregularity",
					Description: "Uneven concrete surface with ripples",
					Confidence:  0.65,
					Severity:    api.SeverityMedium,
				},
			},
		}},
	}
}

// Seed stores the fixtures in repo, skipping ids that already exist.
func Seed(ctx context.Context, repo Repository) (int, error) {
	seeded := 0
	for _, rec := range Fixtures() {
		if _, err := repo.Get(ctx, rec.Detail.ID); err == nil {
			continue
		}
		if err := repo.Put(ctx, rec); err != nil {
			return seeded, fmt.Errorf("failed to seed %s: %w", rec.Detail.ID, err)
		}
		seeded++
	}
	return seeded, nil
}
