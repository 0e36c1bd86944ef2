package domain

// Weight is the learner's derived performance score for one question: the
// sum of per-guess signed scores over their entire guess history. It is a
// pure fold over the append-only guess log and is recomputed on every read;
// a question never attempted weighs 0.
func Weight(q Question, options []QuestionOption, guesses []Guess) int {
	weight := 0
	for _, g := range guesses {
		weight += ScoreGuess(q, options, g.AnswerData)
	}
	return weight
}

// ScoreGuess returns the signed weight contribution of a single guess.
// Guesses that fail to decode contribute 0; history must stay summable even
// if a payload predates a format change.
func ScoreGuess(q Question, options []QuestionOption, raw RawAnswer) int {
	answer, err := DecodeAnswer(q.Type, raw)
	if err != nil {
		return 0
	}

	switch a := answer.(type) {
	case MultipleChoiceAnswer:
		return scoreOptionPick(options, a.OptionID)
	case SentenceSelectAnswer:
		return scoreOptionPick(options, a.OptionID)
	case MatrixAnswer:
		// Per-option sum: every selected option counts for or against,
		// unselected options are neutral.
		submitted := make(map[string]bool, len(a.OptionIDs))
		for _, id := range a.OptionIDs {
			submitted[id] = true
		}
		score := 0
		for _, opt := range options {
			if !submitted[opt.ID] {
				continue
			}
			if opt.Correct {
				score++
			} else {
				score--
			}
		}
		return score
	case SentenceFillAnswer:
		// Free text is noisier, so a miss is not penalized.
		for _, opt := range options {
			if opt.Correct && textMatches(a.Content, opt.Content) {
				return 1
			}
		}
		return 0
	case ImageDragAndDropAnswer:
		if _, incorrect := a.EvaluateDragMap(); incorrect > 0 {
			return -1
		}
		return 1
	}
	return 0
}

func scoreOptionPick(options []QuestionOption, optionID string) int {
	for _, opt := range options {
		if opt.ID == optionID {
			if opt.Correct {
				return 1
			}
			return -1
		}
	}
	// Unknown option ids are neutral, matching the historical aggregation.
	return 0
}

// weightRungs is the display ladder raw weights snap onto.
var weightRungs = [...]int{-2, -1, 0, 2, 4}

// WeightBucket is the consumer-visible form of a raw weight: the rung it
// snapped to, a 1-5 dot count, and a severity label for the tooltip.
type WeightBucket struct {
	Rung     int    `json:"rung"`
	Dots     int    `json:"dots"`
	Severity string `json:"severity"`
}

var bucketByRung = map[int]WeightBucket{
	-2: {Rung: -2, Dots: 1, Severity: "This question is hard for you"},
	-1: {Rung: -1, Dots: 2, Severity: "This question is a bit hard for you"},
	0:  {Rung: 0, Dots: 3, Severity: "You are neutral to this question"},
	2:  {Rung: 2, Dots: 4, Severity: "This question is a bit easy for you"},
	4:  {Rung: 4, Dots: 5, Severity: "This question is easy for you"},
}

// BucketWeight snaps a raw weight to the nearest rung of the ladder. A raw
// weight sitting exactly on a rung keeps it; otherwise equidistant weights
// resolve toward the larger (easier) rung.
func BucketWeight(weight int) WeightBucket {
	best := weightRungs[0]
	bestDist := abs(weight - best)
	for _, rung := range weightRungs[1:] {
		dist := abs(weight - rung)
		if dist < bestDist || (dist == bestDist && rung > best) {
			best = rung
			bestDist = dist
		}
	}
	return bucketByRung[best]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
