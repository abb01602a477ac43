package domain

// Identity is the opaque caller identity handed over by the hosting layer.
type Identity string

func (i Identity) IsZero() bool {
	return i == ""
}
