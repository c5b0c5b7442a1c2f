package listings

import (
	"errors"
	"strings"
)

type CancellationPolicy string

const (
	PolicyFlexible    CancellationPolicy = "flexible"
	PolicyModerate    CancellationPolicy = "moderate"
	PolicyStrict      CancellationPolicy = "strict"
	PolicySuperStrict CancellationPolicy = "super_strict"
)

func ParseCancellationPolicy(raw string) (CancellationPolicy, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch CancellationPolicy(value) {
	case "":
		return PolicyModerate, nil
	case PolicyFlexible, PolicyModerate, PolicyStrict, PolicySuperStrict:
		return CancellationPolicy(value), nil
	case "superstrict":
		return PolicySuperStrict, nil
	}
	return "", ErrUnknownPolicy
}

func (p CancellationPolicy) Valid() bool {
	switch p {
	case PolicyFlexible, PolicyModerate, PolicyStrict, PolicySuperStrict:
		return true
	}
	return false
}

var (
	ErrPetsNotAllowed    = errors.New("listings: pets are not allowed")
	ErrTooManyPets       = errors.New("listings: pet count exceeds listing maximum")
	ErrPetTypeNotAllowed = errors.New("listings: pet type not allowed")
)

type PetPolicy struct {
	Allowed       bool
	AllowedTypes  []string
	MaxPets       int
	FeePerNight   int64
	DepositPerPet int64
}

func (p PetPolicy) normalized() PetPolicy {
	out := p
	out.AllowedTypes = make([]string, 0, len(p.AllowedTypes))
	for _, t := range p.AllowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out.AllowedTypes = append(out.AllowedTypes, t)
		}
	}
	return out
}

// Check validates a pet party against the policy. An empty AllowedTypes list
// accepts any type; a zero MaxPets means no explicit cap.
func (p PetPolicy) Check(count int, types []string) error {
	if count <= 0 {
		return nil
	}
	if !p.Allowed {
		return ErrPetsNotAllowed
	}
	if p.MaxPets > 0 && count > p.MaxPets {
		return ErrTooManyPets
	}
	if len(p.AllowedTypes) == 0 {
		return nil
	}
	for _, t := range types {
		if !p.allowsType(t) {
			return ErrPetTypeNotAllowed
		}
	}
	return nil
}

func (p PetPolicy) allowsType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(allowed, t) {
			return true
		}
	}
	return false
}
