package services

// CanMutate reports whether requesterID may modify a resource owned by
// ownerID. Only the owner may.
func CanMutate(requesterID, ownerID string) bool {
	return requesterID != "" && requesterID == ownerID
}

// AssertOwnership returns ErrForbidden unless CanMutate allows the change.
func AssertOwnership(requesterID, ownerID string) error {
	if !CanMutate(requesterID, ownerID) {
		return ErrForbidden
	}
	return nil
}
