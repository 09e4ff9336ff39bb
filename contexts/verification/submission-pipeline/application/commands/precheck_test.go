package commands

import (
	"testing"
	"time"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/contexts/verification/submission-pipeline/domain/geo"
)

var testCheckpoint = entities.Checkpoint{
	CheckpointID: "cp-1",
	CampaignID:   "camp-1",
	Lat:          40.0,
	Lng:          -74.0,
	RadiusMeters: 50,
}

func photoAt(lat, lng float64, takenAt time.Time) entities.Photo {
	return entities.Photo{
		URL:     "https://cdn.example.com/p.jpg",
		GPS:     &entities.GeoPoint{Lat: lat, Lng: lng},
		TakenAt: takenAt,
	}
}

func TestPrecheckGeofencePass(t *testing.T) {
	now := time.Now().UTC()
	submission := entities.Submission{
		QuestType: entities.QuestSinglePhoto,
		Photos:    []entities.Photo{photoAt(40.0001, -74.0, now)},
	}

	steps, passed := runPrecheck(submission, []entities.Checkpoint{testCheckpoint}, now)
	if !passed {
		t.Fatalf("expected pass, steps: %+v", steps)
	}
	if len(steps) != 1 || steps[0].Kind != entities.TraceKindGeofence {
		t.Fatalf("expected one geofence step, got %+v", steps)
	}
}

func TestPrecheckGeofenceOutsideRadius(t *testing.T) {
	now := time.Now().UTC()
	// ~1.1km north of the checkpoint.
	submission := entities.Submission{
		QuestType: entities.QuestSinglePhoto,
		Photos:    []entities.Photo{photoAt(40.01, -74.0, now)},
	}

	steps, passed := runPrecheck(submission, []entities.Checkpoint{testCheckpoint}, now)
	if passed {
		t.Fatal("expected geofence failure")
	}
	if steps[0].Passed {
		t.Fatal("geofence step should be marked failed")
	}
}

func TestPrecheckGeofenceRadiusIsInclusive(t *testing.T) {
	now := time.Now().UTC()
	photoLat := 40.0004
	submission := entities.Submission{
		QuestType: entities.QuestSinglePhoto,
		Photos:    []entities.Photo{photoAt(photoLat, -74.0, now)},
	}

	// A photo sitting exactly on the fence passes; one meter less fails.
	distance := geo.DistanceMeters(photoLat, -74.0, testCheckpoint.Lat, testCheckpoint.Lng)
	onFence := testCheckpoint
	onFence.RadiusMeters = distance
	if _, passed := runPrecheck(submission, []entities.Checkpoint{onFence}, now); !passed {
		t.Fatalf("a photo at %.1fm must pass a %.1fm radius", distance, onFence.RadiusMeters)
	}

	justInside := testCheckpoint
	justInside.RadiusMeters = distance - 1
	if _, passed := runPrecheck(submission, []entities.Checkpoint{justInside}, now); passed {
		t.Fatalf("a photo at %.1fm must fail a %.1fm radius", distance, justInside.RadiusMeters)
	}
}

func TestPrecheckGeofenceMissingGPS(t *testing.T) {
	now := time.Now().UTC()
	submission := entities.Submission{
		QuestType: entities.QuestSinglePhoto,
		Photos:    []entities.Photo{{URL: "https://cdn.example.com/p.jpg", TakenAt: now}},
	}

	_, passed := runPrecheck(submission, []entities.Checkpoint{testCheckpoint}, now)
	if passed {
		t.Fatal("missing gps must hard-fail the pre-check")
	}
}

func TestPrecheckElapsedWindowBoundaries(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{name: "under a minute", elapsed: 59 * time.Second, want: false},
		{name: "exactly a minute", elapsed: time.Minute, want: true},
		{name: "just over a minute", elapsed: 61 * time.Second, want: true},
		{name: "exactly an hour", elapsed: 60 * time.Minute, want: true},
		{name: "over an hour", elapsed: 61 * time.Minute, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			submission := entities.Submission{
				QuestType: entities.QuestTwoPhotoChange,
				Photos: []entities.Photo{
					photoAt(40.0, -74.0, base),
					photoAt(40.0, -74.0, base.Add(tc.elapsed)),
				},
			}
			_, passed := runPrecheck(submission, []entities.Checkpoint{testCheckpoint}, base)
			if passed != tc.want {
				t.Fatalf("elapsed %s: expected passed=%v", tc.elapsed, tc.want)
			}
		})
	}
}

func TestPrecheckPhotoPairDrift(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// ~111m apart, beyond the 50m pair limit while both photos stay near
	// their own checkpoints.
	submission := entities.Submission{
		QuestType: entities.QuestTwoPhotoChange,
		Photos: []entities.Photo{
			photoAt(40.0, -74.0, base),
			photoAt(40.001, -74.0, base.Add(10*time.Minute)),
		},
	}
	far := testCheckpoint
	far.CheckpointID = "cp-2"
	far.Lat = 40.001

	steps, passed := runPrecheck(submission, []entities.Checkpoint{testCheckpoint, far}, base)
	if passed {
		t.Fatalf("expected drift failure, steps: %+v", steps)
	}
}
