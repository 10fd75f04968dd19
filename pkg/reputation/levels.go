package reputation

// Level is the named standing band a reputation value falls into.
type Level string

const (
	LevelRevered    Level = "revered"
	LevelExalted    Level = "exalted"
	LevelHonored    Level = "honored"
	LevelFriendly   Level = "friendly"
	LevelNeutral    Level = "neutral"
	LevelUnfriendly Level = "unfriendly"
	LevelHostile    Level = "hostile"
	LevelHated      Level = "hated"
	LevelNemesis    Level = "nemesis"
)

const (
	MinReputation = -1000
	MaxReputation = 1000
)

type levelInfo struct {
	level     Level
	min       int
	standing  string
	benefits  []string
	penalties []string
}

// levelTable is ordered from the highest band down; the first band whose
// min the value reaches wins.
var levelTable = []levelInfo{
	{LevelRevered, 800, "전설적인 영웅", []string{"모든 상점 할인 50%", "비밀 퀘스트 접근", "세력 지도자와의 면담"}, nil},
	{LevelExalted, 600, "존경받는 동맹", []string{"할인 40%", "희귀 장비 구매", "세력 병력 지원"}, nil},
	{LevelHonored, 400, "명예로운 친구", []string{"할인 30%", "특별 퀘스트 접근"}, nil},
	{LevelFriendly, 200, "우호적인 방문자", []string{"할인 25%", "기본 정보 접근"}, nil},
	{LevelNeutral, -199, "평범한 이방인", nil, nil},
	{LevelUnfriendly, -399, "의심받는 이방인", nil, []string{"가격 할증 25%"}},
	{LevelHostile, -599, "적대적인 침입자", nil, []string{"가격 할증 50%", "서비스 거부", "감시"}},
	{LevelHated, -799, "증오의 대상", nil, []string{"거래 불가", "경비병의 공격", "현상금"}},
	{LevelNemesis, MinReputation, "불구대천의 원수", nil, []string{"즉각적인 공격", "암살자 파견", "모든 거래 불가"}},
}

func infoFor(value int) levelInfo {
	for _, info := range levelTable {
		if value >= info.min {
			return info
		}
	}
	return levelTable[len(levelTable)-1]
}

// LevelOf maps a reputation value to its band.
func LevelOf(value int) Level {
	return infoFor(value).level
}

// rank orders levels from nemesis (0) to revered.
func rank(l Level) int {
	for i, info := range levelTable {
		if info.level == l {
			return len(levelTable) - 1 - i
		}
	}
	return -1
}

// AtLeast reports whether l is the same band as min or better.
func (l Level) AtLeast(min Level) bool {
	return rank(l) >= rank(min)
}

func clamp(v int) int {
	if v < MinReputation {
		return MinReputation
	}
	if v > MaxReputation {
		return MaxReputation
	}
	return v
}
