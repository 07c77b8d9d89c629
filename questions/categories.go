/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"fmt"
	"strconv"
	"strings"
)

// openTDBCategories lists the category ids published by Open Trivia DB.
var openTDBCategories = map[int]string{
	9:  "General Knowledge",
	10: "Entertainment: Books",
	11: "Entertainment: Film",
	12: "Entertainment: Music",
	13: "Entertainment: Musicals & Theatres",
	14: "Entertainment: Television",
	15: "Entertainment: Video Games",
	16: "Entertainment: Board Games",
	17: "Science & Nature",
	18: "Science: Computers",
	19: "Science: Mathematics",
	20: "Mythology",
	21: "Sports",
	22: "Geography",
	23: "History",
	24: "Politics",
	25: "Art",
	26: "Celebrities",
	27: "Animals",
	28: "Vehicles",
	29: "Entertainment: Comics",
	30: "Science: Gadgets",
	31: "Entertainment: Japanese Anime & Manga",
	32: "Entertainment: Cartoon & Animations",
}

var openTDBLabels = func() map[string]int {
	labels := map[string]int{"science": 17, "nature": 17}

	for id, name := range openTDBCategories {
		labels[strings.ToLower(name)] = id

		// "Entertainment: Film" is also reachable as "film".
		if _, short, ok := strings.Cut(name, ": "); ok {
			labels[strings.ToLower(short)] = id
		}
	}

	return labels
}()

// openTDBCategory resolves a numeric id or a category label to the id
// Open Trivia DB expects.
func openTDBCategory(category string) (string, error) {
	category = strings.TrimSpace(category)

	if id, err := strconv.Atoi(category); err == nil {
		if _, ok := openTDBCategories[id]; !ok {
			return "", fmt.Errorf("unknown category id %d: %w", id, ErrNoResults)
		}

		return category, nil
	}

	id, ok := openTDBLabels[strings.ToLower(category)]
	if !ok {
		return "", fmt.Errorf("unknown category %q: %w", category, ErrNoResults)
	}

	return strconv.Itoa(id), nil
}
