package domain

// SelectNearestScan returns the candidate minimizing target minus the
// candidate's capture time, compared as a signed duration. The first candidate
// wins ties. This is not absolute nearness: a later scan always beats an
// earlier one, so the newest scan of the day is preferred whenever one exists
// after the target.
func SelectNearestScan(ids []ScanIdentifier, target TimeOfDay) (ScanIdentifier, error) {
	if len(ids) == 0 {
		return "", ErrNoCandidates
	}

	nearest := ids[0]
	t, err := nearest.Time()
	if err != nil {
		return "", err
	}
	nearestDiff := target - t

	for _, id := range ids[1:] {
		t, err := id.Time()
		if err != nil {
			return "", err
		}
		if diff := target - t; diff < nearestDiff {
			nearest = id
			nearestDiff = diff
		}
	}

	return nearest, nil
}
