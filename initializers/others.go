package initializers

type leCun struct {
	*varianceScaling
}

func LeCun() leCun {
	return leCun{VarianceScaling().In()}
}

type he struct {
	*varianceScaling
}

func He() he {
	return he{VarianceScaling().In().Factor(2)}
}

// KaimingUniform is He initialization drawn from a uniform distribution, bounded by
// ±sqrt(6/fanIn).
func KaimingUniform() he {
	return he{VarianceScaling().In().Factor(2).Uniform()}
}

type xavier struct {
	*varianceScaling
}

func Xavier() xavier {
	return xavier{VarianceScaling().Avg()}
}
