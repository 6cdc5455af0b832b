package brackets

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mbessolov/tourney-engine/models"
)

// Entrant - размеченный вариант для слота матча: либо команда напрямую,
// либо победитель другого запланированного матча.
type Entrant struct {
	teamID      *int
	sourceIndex *int // индекс матча-источника в плане
}

func TeamEntrant(teamID int) Entrant {
	return Entrant{teamID: &teamID}
}

func WinnerEntrant(planIndex int) Entrant {
	return Entrant{sourceIndex: &planIndex}
}

func (e Entrant) TeamID() (int, bool) {
	if e.teamID == nil {
		return 0, false
	}
	return *e.teamID, true
}

func (e Entrant) SourceIndex() (int, bool) {
	if e.sourceIndex == nil {
		return 0, false
	}
	return *e.sourceIndex, true
}

func (e Entrant) IsEmpty() bool {
	return e.teamID == nil && e.sourceIndex == nil
}

// PlannedMatch - матч сетки до сохранения в БД. Ссылки на источники хранятся
// как индексы плана; слой сохранения заменяет их на ID строк. Источник всегда
// идет в плане раньше своего потребителя.
type PlannedMatch struct {
	RoundLabel  int
	MatchNumber int
	Team1       Entrant
	Team2       Entrant
	Status      models.MatchStatus
}

// BuildSingleElimination строит план сетки single elimination для n >= 2 команд.
//
// bracketSize - наименьшая степень двойки >= n, byeCount = bracketSize - n,
// playInCount = n - byeCount (всегда четное). После случайной перестановки
// первые playInCount команд играют play-in на глубине bracketSize, остальные
// проходят дальше автоматически. RoundLabel каждого раунда равен ширине сетки
// на его глубине, а не порядковому номеру.
//
// rng может быть nil - тогда используется глобальный источник math/rand.
func BuildSingleElimination(teamIDs []int, rng *rand.Rand) ([]*PlannedMatch, error) {
	n := len(teamIDs)
	if n < 2 {
		return nil, errors.New("not enough teams to generate a single elimination bracket (minimum 2)")
	}

	shuffled := make([]int, n)
	copy(shuffled, teamIDs)
	shuffleInts(shuffled, rng)

	bracketSize := 1
	for bracketSize < n {
		bracketSize <<= 1
	}
	byeCount := bracketSize - n
	playInCount := n - byeCount

	plan := make([]*PlannedMatch, 0, n-1)

	// Play-in матчи: оба слота заполнены напрямую, сразу ready.
	playInIndexes := make([]int, 0, playInCount/2)
	for i := 0; i < playInCount; i += 2 {
		plan = append(plan, &PlannedMatch{
			RoundLabel:  bracketSize,
			MatchNumber: i/2 + 1,
			Team1:       TeamEntrant(shuffled[i]),
			Team2:       TeamEntrant(shuffled[i+1]),
			Status:      models.MatchStatusReady,
		})
		playInIndexes = append(playInIndexes, len(plan)-1)
	}

	// Две команды: единственный play-in и есть финал.
	if n == 2 {
		return plan, nil
	}

	// Пустые матчи всех полных раундов, от самого мелкого к финалу.
	roundStart := make(map[int]int) // roundLabel -> индекс первого матча раунда
	for depth := bracketSize / 2; depth >= 2; depth /= 2 {
		roundStart[depth] = len(plan)
		for m := 0; m < depth/2; m++ {
			plan = append(plan, &PlannedMatch{
				RoundLabel:  depth,
				MatchNumber: m + 1,
				Status:      models.MatchStatusPending,
			})
		}
	}

	// Связывание: пары матчей глубины depth >= 4 питают матч глубины depth/2.
	for depth := bracketSize / 2; depth >= 4; depth /= 2 {
		for m := 0; m < depth/2; m += 2 {
			consumer := plan[roundStart[depth/2]+m/2]
			consumer.Team1 = WinnerEntrant(roundStart[depth] + m)
			consumer.Team2 = WinnerEntrant(roundStart[depth] + m + 1)
		}
	}

	// Самый мелкий полный раунд заполняется перемешанной смесью команд,
	// прошедших по bye, и ссылок на play-in матчи.
	entrants := make([]Entrant, 0, bracketSize/2)
	for _, teamID := range shuffled[playInCount:] {
		entrants = append(entrants, TeamEntrant(teamID))
	}
	for _, idx := range playInIndexes {
		entrants = append(entrants, WinnerEntrant(idx))
	}
	shuffleEntrants(entrants, rng)

	firstFull := roundStart[bracketSize/2]
	for m := 0; m*2 < len(entrants); m++ {
		match := plan[firstFull+m]
		match.Team1 = entrants[m*2]
		match.Team2 = entrants[m*2+1]
		if _, ok1 := match.Team1.TeamID(); ok1 {
			if _, ok2 := match.Team2.TeamID(); ok2 {
				match.Status = models.MatchStatusReady
			}
		}
	}

	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func shuffleInts(s []int, rng *rand.Rand) {
	swap := func(i, j int) { s[i], s[j] = s[j], s[i] }
	if rng != nil {
		rng.Shuffle(len(s), swap)
	} else {
		rand.Shuffle(len(s), swap)
	}
}

func shuffleEntrants(s []Entrant, rng *rand.Rand) {
	swap := func(i, j int) { s[i], s[j] = s[j], s[i] }
	if rng != nil {
		rng.Shuffle(len(s), swap)
	} else {
		rand.Shuffle(len(s), swap)
	}
}

// validatePlan проверяет, что источники идут раньше потребителей и каждый
// слот заполнен не более чем одним способом.
func validatePlan(plan []*PlannedMatch) error {
	for i, pm := range plan {
		for _, e := range []Entrant{pm.Team1, pm.Team2} {
			if src, ok := e.SourceIndex(); ok {
				if src >= i {
					return fmt.Errorf("bracket plan invalid: match %d references later match %d", i, src)
				}
			}
		}
	}
	return nil
}
