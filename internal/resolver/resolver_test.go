package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "врач акушер гинеколог", Normalize("Врач-акушер-гинеколог"))
	assert.Equal(t, "поликлиника 8", Normalize("  Поликлиника   №8! "))
	assert.Equal(t, "", Normalize("..."))
}

func TestResolve_ExactContainmentWins(t *testing.T) {
	candidates := []Candidate{
		{ID: "109", Labels: []string{"терапевт"}},
		{ID: "59", Labels: []string{"офтальмолог"}},
		{ID: "7", Labels: []string{"врач-акушер-гинеколог"}},
	}

	got := Resolve("запишите к офтальмологу пожалуйста", candidates, DefaultThreshold)
	require.Equal(t, Unique, got.Kind)
	assert.Equal(t, "59", got.Match.ID)

	got = Resolve("офтальмолог", candidates, DefaultThreshold)
	require.Equal(t, Unique, got.Kind)
	assert.Equal(t, "59", got.Match.ID)
}

func TestResolve_HyphenInsensitive(t *testing.T) {
	candidates := []Candidate{
		{ID: "7", Labels: []string{"врач-акушер-гинеколог"}},
	}

	got := Resolve("акушер гинеколог", candidates, DefaultThreshold)
	require.Equal(t, Unique, got.Kind)
	assert.Equal(t, "7", got.Match.ID)
}

func TestResolve_TwoContainmentsResolveToNone(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Labels: []string{"Иванов Иван Иванович"}},
		{ID: "b", Labels: []string{"Иванов Пётр Сергеевич"}},
		{ID: "c", Labels: []string{"Сидорова Анна Павловна"}},
	}

	// A bare surname shared by two clinicians is a containment tie;
	// the fuzzy stage must not get a chance to break it.
	got := Resolve("иванов", candidates, DefaultThreshold)
	assert.Equal(t, None, got.Kind)
	assert.Empty(t, got.Options)
}

func TestResolve_TwoContainmentsIgnoreFuzzyTiebreak(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Labels: []string{"Иванов"}},
		{ID: "b", Labels: []string{"Иванова Анна"}},
	}

	// "иванов" is an exact label of "a", which would fuzzy-score 100,
	// but "b" contains the text too, so the exact stage reads a tie.
	got := Resolve("иванов", candidates, DefaultThreshold)
	assert.Equal(t, None, got.Kind)
}

func TestResolve_FullNameIsUnique(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Labels: []string{"Иванов Иван Иванович"}},
		{ID: "b", Labels: []string{"Иванов Пётр Сергеевич"}},
	}

	got := Resolve("Иванов Иван Иванович", candidates, DefaultThreshold)
	require.Equal(t, Unique, got.Kind)
	assert.Equal(t, "a", got.Match.ID)
}

func TestResolve_NoMatch(t *testing.T) {
	candidates := []Candidate{
		{ID: "109", Labels: []string{"терапевт"}},
	}

	got := Resolve("хочу пиццу", candidates, DefaultThreshold)
	assert.Equal(t, None, got.Kind)
}

func TestResolve_EmptyInputs(t *testing.T) {
	assert.Equal(t, None, Resolve("", []Candidate{{ID: "x", Labels: []string{"y"}}}, DefaultThreshold).Kind)
	assert.Equal(t, None, Resolve("терапевт", nil, DefaultThreshold).Kind)
}

func TestResolve_BestLabelPerCandidate(t *testing.T) {
	// A facility scores as the best of its name, address and alias.
	candidates := []Candidate{
		{ID: "1.2.3", Labels: []string{
			"ГАУЗ ТО Городская поликлиника №8",
			"улица Пермякова 73",
			"восьмая поликлиника",
		}},
		{ID: "4.5.6", Labels: []string{
			"ГАУЗ ТО Городская поликлиника №5",
			"улица Московский тракт 35а",
		}},
	}

	got := Resolve("восьмая поликлиника", candidates, DefaultThreshold)
	require.Equal(t, Unique, got.Kind)
	assert.Equal(t, "1.2.3", got.Match.ID)
	assert.Equal(t, "восьмая поликлиника", got.Match.Label)
}

func TestResolve_ManyContainmentsResolveToNone(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Labels: []string{"поликлиника один"}},
		{ID: "2", Labels: []string{"поликлиника два"}},
		{ID: "3", Labels: []string{"поликлиника три"}},
	}

	got := Resolve("поликлиника", candidates, DefaultThreshold)
	assert.Equal(t, None, got.Kind)
}

func TestResolve_AmbiguousCapsOptions(t *testing.T) {
	// No candidate contains the query as a substring, so the fuzzy
	// stage ranks them; every suffix token has the same length, so
	// the scores tie and nothing clears the confident bar alone.
	candidates := []Candidate{
		{ID: "1", Labels: []string{"ромашка клиника север"}},
		{ID: "2", Labels: []string{"ромашка клиника запад"}},
		{ID: "3", Labels: []string{"ромашка клиника мотор"}},
		{ID: "4", Labels: []string{"ромашка клиника сокол"}},
		{ID: "5", Labels: []string{"ромашка клиника артек"}},
	}

	got := Resolve("клиника ромашка", candidates, DefaultThreshold)
	require.Equal(t, Ambiguous, got.Kind)
	assert.Len(t, got.Options, 3)
}
