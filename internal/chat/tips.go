package chat

var fitnessTips = []string{
	"Try to get at least 150 minutes of moderate aerobic activity or 75 minutes of vigorous aerobic activity a week.",
	"Strength training exercises for all major muscle groups at least twice a week can help improve overall fitness.",
	"Stay hydrated! Drink water before, during, and after your workout.",
	"Make sure to include rest days in your fitness routine to allow your body to recover.",
	"Consistency is key for fitness results. Even short daily workouts are better than occasional intense sessions.",
	"Consider tracking your workouts to monitor progress and stay motivated.",
	"Mix up your routine to prevent plateaus and keep exercise interesting.",
	"Proper form is more important than the amount of weight you lift or how many reps you do.",
}

// Tips возвращает копию списка советов.
func Tips() []string {
	out := make([]string, len(fitnessTips))
	copy(out, fitnessTips)
	return out
}
