package main

import (
	"log"
	"net/http"
	"os"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var reporter *ScoreReporter
	if url := os.Getenv("LEADERBOARD_URL"); url != "" {
		reporter = NewScoreReporter(url)
		log.Printf("reporting scores to %s", url)
	} else {
		log.Println("LEADERBOARD_URL not set, scores are kept in the local store")
	}

	srv := NewServer(NewStore(), reporter)

	log.Printf("snake server listening on http://localhost:%s", port)
	if err := http.ListenAndServe(":"+port, srv); err != nil {
		log.Fatal(err)
	}
}
