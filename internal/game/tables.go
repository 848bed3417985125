package game

// ============================================================================
// 静态数值表
// ============================================================================
//
// 怪物表、经验奖励表、等级曲线都是纯静态配置，无任何运行时状态。
// 数值调整只改这里，经济引擎不感知具体数值。

// 怪物类型
const (
	MonsterTypeNormal = "normal"
	MonsterTypeElite  = "elite"
	MonsterTypeBoss   = "boss"
)

// Monster 怪物静态数据
type Monster struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	HP   int64  `json:"hp"`
	Type string `json:"type"`
}

// monsterTable 怪物表：id → 怪物数据
var monsterTable = map[int]Monster{
	1: {ID: 1, Name: "史莱姆", HP: 20, Type: MonsterTypeNormal},
	2: {ID: 2, Name: "哥布林", HP: 30, Type: MonsterTypeNormal},
	3: {ID: 3, Name: "狼人", HP: 45, Type: MonsterTypeNormal},
	4: {ID: 4, Name: "石像鬼", HP: 60, Type: MonsterTypeElite},
	5: {ID: 5, Name: "暗影骑士", HP: 90, Type: MonsterTypeElite},
	6: {ID: 6, Name: "远古巨龙", HP: 150, Type: MonsterTypeBoss},
}

// expRewardByType 类型 → 每场胜利的经验奖励
var expRewardByType = map[string]int64{
	MonsterTypeNormal: 1,
	MonsterTypeElite:  3,
	MonsterTypeBoss:   5,
}

// MonsterByID 查询怪物，不存在返回 false
func MonsterByID(id int) (Monster, bool) {
	m, ok := monsterTable[id]
	return m, ok
}

// Monsters 返回全部怪物（客户端图鉴接口用）
func Monsters() []Monster {
	out := make([]Monster, 0, len(monsterTable))
	for id := 1; id <= len(monsterTable); id++ {
		if m, ok := monsterTable[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ExpReward 返回击败某类型怪物的经验奖励，未知类型默认 1
func ExpReward(monsterType string) int64 {
	if exp, ok := expRewardByType[monsterType]; ok {
		return exp
	}
	return 1
}

// levelThresholds 升到下一级所需的累计经验
// 下标 = 等级-1，值 = 达到该等级所需的总经验
// 经验是累计制（升级不清零），所以阈值也是累计值
var levelThresholds = []int64{
	0,    // level 1
	150,  // level 2
	350,  // level 3
	600,  // level 4
	1000, // level 5
	1500, // level 6
	2200, // level 7
	3100, // level 8
	4200, // level 9
	5500, // level 10
}

// ExpToReach 返回达到指定等级所需的总经验
// 超出表范围后每级线性增加 1000
func ExpToReach(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level-1 < len(levelThresholds) {
		return levelThresholds[level-1]
	}
	last := levelThresholds[len(levelThresholds)-1]
	return last + int64(level-len(levelThresholds))*1000
}

// MaxHP 等级对应的最大生命值
func MaxHP(level int) int {
	return 20 + (level-1)*2
}

// EntryFee 战斗入场费，恒等于当前最大生命值
func EntryFee(level int) int64 {
	return int64(MaxHP(level))
}
