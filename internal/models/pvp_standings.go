package models

import "time"

// PvpStandings is one season of ranked standings for an API key.
// Rating and decay are absent for seasons without a rating ladder.
type PvpStandings struct {
	ID         int64  `json:"id"`
	SeasonID   string `json:"seasonId"`
	ApiTokenID *int64 `json:"apiTokenId"`

	TotalPointsCurrent int  `json:"totalPointsCurrent"`
	DivisionCurrent    int  `json:"divisionCurrent"`
	PointsCurrent      int  `json:"pointsCurrent"`
	RepeatsCurrent     int  `json:"repeatsCurrent"`
	RatingCurrent      *int `json:"ratingCurrent"`
	DecayCurrent       *int `json:"decayCurrent"`

	TotalPointsBest int  `json:"totalPointsBest"`
	DivisionBest    int  `json:"divisionBest"`
	PointsBest      int  `json:"pointsBest"`
	RepeatsBest     int  `json:"repeatsBest"`
	RatingBest      *int `json:"ratingBest"`
	DecayBest       *int `json:"decayBest"`

	EuRank   *int `json:"euRank"`
	NaRank   *int `json:"naRank"`
	Gw2aRank *int `json:"gw2aRank"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
