package commands

import (
	"fmt"
	"time"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/contexts/verification/submission-pipeline/domain/geo"
)

const (
	twoPhotoMinElapsed  = time.Minute
	twoPhotoMaxElapsed  = 60 * time.Minute
	twoPhotoMaxDriftM   = 50.0
	geofenceStepPrefix  = "geofence_photo"
	timingElapsedStep   = "elapsed_window"
	timingProximityStep = "photo_proximity"
)

// runPrecheck executes the deterministic geofence and timing checks. It
// costs no external calls and is evaluated before any scorer runs. The
// returned steps are appended to the trace whether or not the check passed.
func runPrecheck(submission entities.Submission, checkpoints []entities.Checkpoint, at time.Time) ([]entities.TraceStep, bool) {
	steps := make([]entities.TraceStep, 0, len(submission.Photos)+2)
	passed := true

	for i, photo := range submission.Photos {
		step := entities.TraceStep{
			Kind:       entities.TraceKindGeofence,
			Name:       fmt.Sprintf("%s_%d", geofenceStepPrefix, i+1),
			RecordedAt: at,
		}
		if photo.GPS == nil {
			step.Detail = "photo has no gps coordinates"
		} else {
			nearest, inside := nearestCheckpoint(*photo.GPS, checkpoints)
			step.Passed = inside
			step.Detail = fmt.Sprintf("nearest_distance_m=%.1f checkpoints=%d", nearest, len(checkpoints))
		}
		if !step.Passed {
			passed = false
		}
		steps = append(steps, step)
	}

	if submission.QuestType == entities.QuestTwoPhotoChange && len(submission.Photos) == 2 {
		before, after := submission.Photos[0], submission.Photos[1]
		elapsed := after.TakenAt.Sub(before.TakenAt)

		elapsedStep := entities.TraceStep{
			Kind:       entities.TraceKindTiming,
			Name:       timingElapsedStep,
			Passed:     elapsed >= twoPhotoMinElapsed && elapsed <= twoPhotoMaxElapsed,
			Detail:     fmt.Sprintf("elapsed=%s min=%s max=%s", elapsed, twoPhotoMinElapsed, twoPhotoMaxElapsed),
			RecordedAt: at,
		}
		if !elapsedStep.Passed {
			passed = false
		}
		steps = append(steps, elapsedStep)

		proximityStep := entities.TraceStep{
			Kind:       entities.TraceKindTiming,
			Name:       timingProximityStep,
			RecordedAt: at,
		}
		if before.GPS != nil && after.GPS != nil {
			drift := geo.DistanceMeters(before.GPS.Lat, before.GPS.Lng, after.GPS.Lat, after.GPS.Lng)
			proximityStep.Passed = drift <= twoPhotoMaxDriftM
			proximityStep.Detail = fmt.Sprintf("drift_m=%.1f max_m=%.0f", drift, twoPhotoMaxDriftM)
		} else {
			proximityStep.Detail = "photo pair has no gps coordinates"
		}
		if !proximityStep.Passed {
			passed = false
		}
		steps = append(steps, proximityStep)
	}

	return steps, passed
}

func nearestCheckpoint(point entities.GeoPoint, checkpoints []entities.Checkpoint) (float64, bool) {
	nearest := -1.0
	inside := false
	for _, cp := range checkpoints {
		distance := geo.DistanceMeters(point.Lat, point.Lng, cp.Lat, cp.Lng)
		if nearest < 0 || distance < nearest {
			nearest = distance
		}
		if geo.WithinRadius(point.Lat, point.Lng, cp.Lat, cp.Lng, cp.RadiusMeters) {
			inside = true
		}
	}
	return nearest, inside
}
