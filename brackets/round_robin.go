package brackets

import "fmt"

// Pair - одна неупорядоченная пара команд кругового турнира.
type Pair struct {
	Team1ID int
	Team2ID int
}

// AllPairs строит все пары (i, j), i < j, по одной на каждую неупорядоченную
// пару команд. Порядок входного списка на корректность не влияет.
func AllPairs(teamIDs []int) ([]Pair, error) {
	if len(teamIDs) < 2 {
		return nil, fmt.Errorf("not enough teams for a round robin (found %d, min 2 required)", len(teamIDs))
	}

	pairs := make([]Pair, 0, len(teamIDs)*(len(teamIDs)-1)/2)
	for i := 0; i < len(teamIDs); i++ {
		for j := i + 1; j < len(teamIDs); j++ {
			pairs = append(pairs, Pair{Team1ID: teamIDs[i], Team2ID: teamIDs[j]})
		}
	}
	return pairs, nil
}
