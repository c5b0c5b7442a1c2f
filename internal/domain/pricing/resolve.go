package pricing

// Effective is the merged fee schedule for one listing.
type Effective struct {
	Enabled          bool
	ServiceFee       RateFee
	Tax              RateFee
	CleaningFee      FlatFee
	PetFeePerNight   FlatFee
	PetDepositPerPet FlatFee
	// Sources records the scope that supplied each category; categories never
	// set at any scope are absent and carry the defaults.
	Sources map[Category]Scope
}

// Defaults returns the schema defaults: enabled, percentage mode, zero, not free.
func Defaults() Effective {
	return Effective{
		Enabled:    true,
		ServiceFee: RateFee{Mode: ModePercentage},
		Tax:        RateFee{Mode: ModePercentage},
		Sources:    map[Category]Scope{},
	}
}

// Merge folds the layers from least to most specific (global, host, listing).
// Each category is taken from the most specific layer where it is present;
// nil layers behave like empty ones. A disabled result drops every category
// back to the defaults.
func Merge(layers ...*Config) Effective {
	eff := Defaults()
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Enabled != nil {
			eff.Enabled = *layer.Enabled
		}
		if layer.ServiceFee != nil {
			eff.ServiceFee = *layer.ServiceFee
			eff.Sources[CategoryServiceFee] = layer.Scope
		}
		if layer.Tax != nil {
			eff.Tax = *layer.Tax
			eff.Sources[CategoryTax] = layer.Scope
		}
		if layer.CleaningFee != nil {
			eff.CleaningFee = *layer.CleaningFee
			eff.Sources[CategoryCleaningFee] = layer.Scope
		}
		if layer.PetFeePerNight != nil {
			eff.PetFeePerNight = *layer.PetFeePerNight
			eff.Sources[CategoryPetFee] = layer.Scope
		}
		if layer.PetDepositPerPet != nil {
			eff.PetDepositPerPet = *layer.PetDepositPerPet
			eff.Sources[CategoryPetDeposit] = layer.Scope
		}
	}
	if !eff.Enabled {
		disabled := Defaults()
		disabled.Enabled = false
		return disabled
	}
	return eff
}

func (e Effective) isSet(c Category) bool {
	_, ok := e.Sources[c]
	return ok
}
