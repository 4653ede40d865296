package questions

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

func newQuestionID() string {
	return uuid.NewString()
}

// banks maps a topic tag to a reserve bank. A topic matches a tag when it
// contains it, case-insensitively; when several tags match, which of them is
// used is not defined. generalTag is used when nothing else matches.
const generalTag = "general"

var banks = map[string][]room.Question{
	"science": {
		{Text: "What planet is known as the Red Planet?", Options: [4]string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectOption: 1},
		{Text: "What gas do plants absorb from the atmosphere?", Options: [4]string{"Oxygen", "Nitrogen", "Carbon dioxide", "Hydrogen"}, CorrectOption: 2},
		{Text: "What is the chemical symbol for gold?", Options: [4]string{"Go", "Gd", "Au", "Ag"}, CorrectOption: 2},
		{Text: "How many bones are in the adult human body?", Options: [4]string{"206", "186", "226", "196"}, CorrectOption: 0},
		{Text: "What force pulls objects toward Earth?", Options: [4]string{"Magnetism", "Gravity", "Friction", "Tension"}, CorrectOption: 1},
		{Text: "What is the speed of light closest to, in km/s?", Options: [4]string{"150,000", "300,000", "3,000", "30,000"}, CorrectOption: 1},
	},
	"history": {
		{Text: "In what year did World War II end?", Options: [4]string{"1943", "1945", "1947", "1950"}, CorrectOption: 1},
		{Text: "Who was the first President of the United States?", Options: [4]string{"Adams", "Jefferson", "Washington", "Franklin"}, CorrectOption: 2},
		{Text: "Which empire built the Colosseum?", Options: [4]string{"Greek", "Roman", "Ottoman", "Persian"}, CorrectOption: 1},
		{Text: "The Great Wall was built to defend which country?", Options: [4]string{"Japan", "India", "China", "Korea"}, CorrectOption: 2},
		{Text: "Who painted the Mona Lisa?", Options: [4]string{"Michelangelo", "Raphael", "da Vinci", "Donatello"}, CorrectOption: 2},
		{Text: "Which ship famously sank in 1912?", Options: [4]string{"Lusitania", "Titanic", "Britannic", "Olympic"}, CorrectOption: 1},
	},
	generalTag: {
		{Text: "How many continents are there?", Options: [4]string{"5", "6", "7", "8"}, CorrectOption: 2},
		{Text: "What is the largest ocean on Earth?", Options: [4]string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectOption: 3},
		{Text: "How many strings does a standard guitar have?", Options: [4]string{"4", "5", "6", "7"}, CorrectOption: 2},
		{Text: "What is the capital of France?", Options: [4]string{"Lyon", "Marseille", "Paris", "Nice"}, CorrectOption: 2},
		{Text: "How many players are on a soccer team on the field?", Options: [4]string{"9", "10", "11", "12"}, CorrectOption: 2},
		{Text: "What is the freezing point of water in Celsius?", Options: [4]string{"0", "32", "100", "-1"}, CorrectOption: 0},
		{Text: "Which planet is closest to the Sun?", Options: [4]string{"Venus", "Earth", "Mercury", "Mars"}, CorrectOption: 2},
		{Text: "What color do you get mixing blue and yellow?", Options: [4]string{"Purple", "Green", "Orange", "Brown"}, CorrectOption: 1},
	},
}

// reserveBank returns n questions drawn from the bank matching topic (by
// substring, case-insensitive), padding from the general bank if the
// matched bank is too small, and cycling if n exceeds the available pool.
func reserveBank(topic string, n int) []room.Question {
	pool := pickBank(topic)
	if len(pool) < n {
		pool = append(append([]room.Question{}, pool...), banks[generalTag]...)
	}

	out := make([]room.Question, n)
	for i := 0; i < n; i++ {
		q := pool[i%len(pool)]
		q.QuestionID = newQuestionID()
		out[i] = q
	}
	return out
}

func pickBank(topic string) []room.Question {
	lower := strings.ToLower(topic)
	for tag, bank := range banks {
		if tag == generalTag {
			continue
		}
		if strings.Contains(lower, tag) {
			return bank
		}
	}
	return banks[generalTag]
}
