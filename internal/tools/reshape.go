package tools

import (
	"encoding/json"
	"fmt"
)

// sleepSummary projects the full sleep payload down to its scalar overview
// fields. The projection is lossy on purpose: the per-epoch series run to
// hundreds of kilobytes and stay behind get_sleep_detail.
func sleepSummary(raw json.RawMessage) (map[string]any, error) {
	payload, err := decodeObject(raw, "sleep")
	if err != nil {
		return nil, err
	}
	dto, _ := payload["dailySleepDTO"].(map[string]any)

	return map[string]any{
		"calendarDate":         dto["calendarDate"],
		"sleepScore":           dig(dto, "sleepScores", "overall", "value"),
		"sleepQuality":         dig(dto, "sleepScores", "overall", "qualifierKey"),
		"sleepStartLocal":      dto["sleepStartTimestampLocal"],
		"sleepEndLocal":        dto["sleepEndTimestampLocal"],
		"sleepDurationSecs":    dto["sleepTimeSeconds"],
		"deepSleepSecs":        dto["deepSleepSeconds"],
		"lightSleepSecs":       dto["lightSleepSeconds"],
		"remSleepSecs":         dto["remSleepSeconds"],
		"awakeSleepSecs":       dto["awakeSleepSeconds"],
		"averageSpO2":          dto["averageSpO2Value"],
		"lowestSpO2":           dto["lowestSpO2Value"],
		"averageRespiration":   dto["averageRespirationValue"],
		"restingHeartRate":     payload["restingHeartRate"],
		"avgOvernightHrv":      payload["avgOvernightHrv"],
		"hrvStatus":            payload["hrvStatus"],
		"bodyBatteryChange":    payload["bodyBatteryChange"],
		"restlessMomentsCount": payload["restlessMomentsCount"],
		"sleepLevels":          payload["sleepLevels"],
	}, nil
}

// sleepDetail extracts the high-volume per-epoch time series the summary
// deliberately drops.
func sleepDetail(raw json.RawMessage) (map[string]any, error) {
	payload, err := decodeObject(raw, "sleep")
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"sleepMovement":    payload["sleepMovement"],
		"sleepHeartRate":   payload["sleepHeartRate"],
		"sleepStress":      payload["sleepStress"],
		"sleepBodyBattery": payload["sleepBodyBattery"],
		"hrvData":          payload["hrvData"],
		"spO2Data":         payload["wellnessEpochSPO2DataDTOList"],
		"respirationData":  payload["wellnessEpochRespirationDataDTOList"],
		"restlessMoments":  payload["sleepRestlessMoments"],
	}, nil
}

func decodeObject(raw json.RawMessage, what string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", what, err)
	}
	return payload, nil
}

// dig walks nested objects, returning nil as soon as any step is missing
// or not an object.
func dig(m map[string]any, keys ...string) any {
	cur := any(m)
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}
