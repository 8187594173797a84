package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "eagle", "eagle", 1},
		{"both empty", "", "", 1},
		{"one empty", "eagle", "", 0},
		{"one edit", "eagle", "eagles", 1 - 1.0/6},
		{"disjoint", "abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 0.0001)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a), 0.0001)
		})
	}
}

func TestTokenJaccard(t *testing.T) {
	assert.InDelta(t, 2.0/3, TokenJaccard("eagle technologies group", "eagle technologies"), 0.0001)
	assert.InDelta(t, 1.0, TokenJaccard("", ""), 0.0001)
	assert.InDelta(t, 0.0, TokenJaccard("eagle", ""), 0.0001)
}

func TestSetJaccard_Duplicates(t *testing.T) {
	assert.InDelta(t, 1.0/3, SetJaccard([]string{"a", "a", "b"}, []string{"b", "c", "c"}), 0.0001)
}

func TestPrimaryToken(t *testing.T) {
	assert.Equal(t, "eagle", PrimaryToken("the eagle group"))
	assert.Equal(t, "the", PrimaryToken("the"))
	assert.Equal(t, "", PrimaryToken(""))
}

func TestPhoneticKey(t *testing.T) {
	assert.Equal(t, PhoneticKey("smith construction"), PhoneticKey("smyth construction"))
	assert.NotEqual(t, PhoneticKey("smith construction"), PhoneticKey("jones construction"))
	assert.Equal(t, "", PhoneticKey("3 4 5"))
	assert.Equal(t, "", PhoneticKey(""))
}

func TestIsAbbreviation(t *testing.T) {
	assert.True(t, IsAbbreviation("ibm", "international business machines"))
	assert.True(t, IsAbbreviation("international business machines", "ibm"))
	assert.True(t, IsAbbreviation("c n r", "canadian national railway"))
	assert.False(t, IsAbbreviation("ibm", "international business"))
	assert.False(t, IsAbbreviation("eagle", "eagle"))
}
