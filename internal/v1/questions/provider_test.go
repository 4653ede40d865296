package questions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_NoAPIKeyUsesFallback(t *testing.T) {
	p := NewProvider("", "gemini-1.5-flash", 35)

	result := p.Generate(context.Background(), "science trivia", 3)
	assert.Equal(t, "fallback", result.Source)
	assert.Len(t, result.Questions, 6)
	for _, q := range result.Questions {
		assert.NotEmpty(t, q.QuestionID)
		assert.NotEmpty(t, q.Text)
	}
}

func TestGenerate_UpstreamErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newProvider("fake-key", "gemini-1.5-flash", 5, srv.URL)

	result := p.Generate(context.Background(), "history", 2)
	require.Equal(t, "fallback", result.Source)
	assert.Len(t, result.Questions, 4)
	assert.NotEmpty(t, result.Reason)
}

func TestGenerate_UpstreamSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[` +
			`{\"text\":\"q1\",\"options\":[\"a\",\"b\",\"c\",\"d\"],\"correctOption\":1},` +
			`{\"text\":\"q2\",\"options\":[\"a\",\"b\",\"c\",\"d\"],\"correctOption\":2}` +
			`]"}]}}]}`))
	}))
	defer srv.Close()

	p := newProvider("fake-key", "gemini-1.5-flash", 5, srv.URL)

	result := p.Generate(context.Background(), "history", 1)
	require.Equal(t, "ai", result.Source)
	assert.Len(t, result.Questions, 2)
}

func TestReserveBank_TopicHeuristic(t *testing.T) {
	qs := reserveBank("Ancient History", 4)
	assert.Len(t, qs, 4)
	ids := map[string]bool{}
	for i, q := range qs {
		assert.Equal(t, banks["history"][i].Text, q.Text)
		assert.False(t, ids[q.QuestionID], "question ids must be unique")
		ids[q.QuestionID] = true
	}
}

func TestReserveBank_CyclesWhenPoolSmallerThanN(t *testing.T) {
	qs := reserveBank("science", 20)
	assert.Len(t, qs, 20)
}

func TestIsValid(t *testing.T) {
	valid := generatedQuestion{Text: "q", Options: []string{"a", "b", "c", "d"}, CorrectOption: 2}
	q := toRoomQuestion(valid)
	assert.True(t, isValid(q))

	invalid := toRoomQuestion(generatedQuestion{Text: "", Options: []string{"a", "b", "c", "d"}, CorrectOption: 0})
	assert.False(t, isValid(invalid))
}
