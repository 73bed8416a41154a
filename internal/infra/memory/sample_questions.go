package memory

import "trivia-party-service/internal/domain"

// SampleQuestions is a small built-in bank for offline play.
func SampleQuestions() []domain.RawQuestion {
	return []domain.RawQuestion{
		{Category: "General Knowledge", Type: "multiple", Difficulty: "easy", Question: "What is the capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Lyon", "Marseille", "Nice"}},
		{Category: "General Knowledge", Type: "multiple", Difficulty: "easy", Question: "How many days are in a leap year?", CorrectAnswer: "366", IncorrectAnswers: []string{"365", "364", "360"}},
		{Category: "General Knowledge", Type: "boolean", Difficulty: "easy", Question: "The Great Wall of China is visible from the Moon with the naked eye.", CorrectAnswer: "False", IncorrectAnswers: []string{"True"}},
		{Category: "General Knowledge", Type: "multiple", Difficulty: "medium", Question: "Which planet has the most moons?", CorrectAnswer: "Saturn", IncorrectAnswers: []string{"Jupiter", "Uranus", "Neptune"}},
		{Category: "Science: Computers", Type: "multiple", Difficulty: "easy", Question: "What does CPU stand for?", CorrectAnswer: "Central Processing Unit", IncorrectAnswers: []string{"Central Process Unit", "Computer Personal Unit", "Central Processor Unit"}},
		{Category: "Science: Computers", Type: "boolean", Difficulty: "easy", Question: "The logo for Snapchat is a bell.", CorrectAnswer: "False", IncorrectAnswers: []string{"True"}},
		{Category: "Science: Computers", Type: "multiple", Difficulty: "medium", Question: "How many bits are in a byte?", CorrectAnswer: "8", IncorrectAnswers: []string{"4", "16", "32"}},
		{Category: "Science: Computers", Type: "multiple", Difficulty: "hard", Question: "Which year was the Go programming language announced?", CorrectAnswer: "2009", IncorrectAnswers: []string{"2007", "2012", "2005"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Question: "What is the largest ocean on Earth?", CorrectAnswer: "Pacific Ocean", IncorrectAnswers: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean"}},
		{Category: "Geography", Type: "multiple", Difficulty: "medium", Question: "Which country has the most natural lakes?", CorrectAnswer: "Canada", IncorrectAnswers: []string{"Finland", "Russia", "United States"}},
		{Category: "Geography", Type: "boolean", Difficulty: "medium", Question: "Mount Kilimanjaro is in Kenya.", CorrectAnswer: "False", IncorrectAnswers: []string{"True"}},
		{Category: "History", Type: "multiple", Difficulty: "easy", Question: "In which year did World War II end?", CorrectAnswer: "1945", IncorrectAnswers: []string{"1944", "1946", "1939"}},
		{Category: "History", Type: "multiple", Difficulty: "medium", Question: "Who was the first emperor of Rome?", CorrectAnswer: "Augustus", IncorrectAnswers: []string{"Julius Caesar", "Nero", "Caligula"}},
		{Category: "History", Type: "boolean", Difficulty: "hard", Question: "The Hundred Years' War lasted exactly one hundred years.", CorrectAnswer: "False", IncorrectAnswers: []string{"True"}},
	}
}
