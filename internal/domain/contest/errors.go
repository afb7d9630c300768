package contest

import "errors"

var (
	// ErrNotFound is returned by repository operations that must lock an
	// existing contest row.
	ErrNotFound = errors.New("contest not found")
	// ErrNotActive is returned by WinnerRepository.Finish when the contest
	// is neither active nor already ended, and by ParticipantRepository.Insert
	// when the contest is not active at insert time.
	ErrNotActive = errors.New("contest is not active")
)
