package model

// SequenceLength is the number of models in every escalation.
const SequenceLength = 8

// BuildSequence returns the fixed 8-model escalation for a response variable.
// Only the response name differs between response variables.
func BuildSequence(response string) []Spec {
	mainEffects := []Term{TermIntercept, Term(PredStrength), Term(PredProficiency), Term(PredConstruction)}
	full := append(append([]Term{}, mainEffects...),
		Interaction(PredStrength, PredProficiency),
		Interaction(PredStrength, PredConstruction),
		Interaction(PredProficiency, PredConstruction),
		Interaction(PredStrength, PredProficiency, PredConstruction),
	)

	subj := RandomTerm{Group: GroupSubject}
	item := RandomTerm{Group: GroupItem}
	subjSlope := RandomTerm{Group: GroupSubject, Slopes: []Predictor{PredStrength}}
	itemSlope := RandomTerm{Group: GroupItem, Slopes: []Predictor{PredStrength}}

	seq := []Spec{
		{ID: 1, Fixed: mainEffects[:1], Random: []RandomTerm{subj}},
		{ID: 2, Fixed: mainEffects[:2], Random: []RandomTerm{subj}},
		{ID: 3, Fixed: mainEffects[:3], Random: []RandomTerm{subj}},
		{ID: 4, Fixed: mainEffects[:4], Random: []RandomTerm{subj}},
		{ID: 5, Fixed: mainEffects[:4], Random: []RandomTerm{subj, item}},
		{ID: 6, Fixed: mainEffects[:4], Random: []RandomTerm{subjSlope, item}},
		{ID: 7, Fixed: mainEffects[:4], Random: []RandomTerm{subjSlope, itemSlope}},
		{ID: 8, Fixed: full, Random: []RandomTerm{subjSlope, itemSlope}},
	}
	for i := range seq {
		seq[i].Response = response
		seq[i].Fixed = append([]Term(nil), seq[i].Fixed...)
		seq[i].Random = append([]RandomTerm(nil), seq[i].Random...)
	}
	return seq
}
