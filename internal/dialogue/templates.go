// internal/dialogue/templates.go
package dialogue

import "github.com/Corphon/OverwatchVoice/internal/models"

// 命令回应分类，与动作同名
const (
	CategoryMove      models.DialogueCategory = "move"
	CategoryHold      models.DialogueCategory = "hold"
	CategoryEngage    models.DialogueCategory = "engage"
	CategoryCeaseFire models.DialogueCategory = "cease_fire"
	CategoryAirstrike models.DialogueCategory = "airstrike"
	CategoryClarify   models.DialogueCategory = "clarify"
)

// 事件分类
const (
	EventAirstrikeReady    models.DialogueCategory = "airstrike_ready"
	EventAirstrikeCooldown models.DialogueCategory = "airstrike_cooldown"
	EventConfirmTarget     models.DialogueCategory = "confirm_target"
	EventKillEnemy         models.DialogueCategory = "kill_enemy"
	EventKillFriendly      models.DialogueCategory = "kill_friendly"
	EventContact           models.DialogueCategory = "contact"
	EventUnderFire         models.DialogueCategory = "under_fire"
	EventVictory           models.DialogueCategory = "victory"
	EventDefeat            models.DialogueCategory = "defeat"
)

// 澄清请求类型
const (
	IssueGeneral  = "general"
	IssueTarget   = "target"
	IssueLocation = "location"
	IssueUnit     = "unit"
)

// DefaultAirstrikeDelay 命令未携带 delay 参数时使用的秒数
const DefaultAirstrikeDelay = 3

// templateTable 分类到模板列表的只读映射，不要在运行时修改
var templateTable = map[models.DialogueCategory][]string{
	CategoryMove: {
		"Copy, moving to position.",
		"Roger, advancing now.",
		"Moving.",
		"Copy that, relocating.",
		"On the move.",
		"Moving to grid.",
	},
	CategoryHold: {
		"Roger, holding position.",
		"Copy, holding.",
		"Staying put.",
		"Position held.",
		"Not moving.",
	},
	CategoryEngage: {
		"Copy, engaging targets.",
		"Weapons free.",
		"Engaging.",
		"Opening fire.",
		"Contact, engaging.",
	},
	CategoryCeaseFire: {
		"Copy, holding fire.",
		"Weapons hold.",
		"Ceasing fire.",
		"Roger, holding.",
	},
	CategoryAirstrike: {
		"Airstrike inbound. Impact in {delay} seconds.",
		"Copy, calling in air support. {delay} seconds to impact.",
		"Ordnance on the way. Danger close in {delay}.",
	},
	CategoryClarify: {
		"Say again?",
		"Did not copy.",
		"Repeat command.",
		"Say again, over.",
	},
	EventAirstrikeReady: {
		"Airstrike available.",
		"Air support standing by.",
	},
	EventAirstrikeCooldown: {
		"Negative, airstrike on cooldown. {time} seconds remaining.",
		"Air support unavailable. Reloading in {time}.",
	},
	EventConfirmTarget: {
		"Confirm target location.",
		"Need coordinates.",
		"Specify grid.",
	},
	EventKillEnemy: {
		"Tango down.",
		"Target eliminated.",
		"Hostile neutralized.",
		"Got him.",
	},
	EventKillFriendly: {
		"Man down!",
		"{callsign} is down!",
		"We lost {callsign}!",
	},
	EventContact: {
		"Contact!",
		"Enemy spotted!",
		"Hostiles sighted!",
		"We've got company!",
	},
	EventUnderFire: {
		"Taking fire!",
		"Contact, we're engaged!",
		"Under fire!",
	},
	EventVictory: {
		"Area secure.",
		"All hostiles eliminated.",
		"Mission complete.",
	},
	EventDefeat: {
		"Mission failed.",
		"We're done.",
	},
}

var clarifyTable = map[string][]string{
	IssueGeneral:  templateTable[CategoryClarify],
	IssueTarget:   templateTable[EventConfirmTarget],
	IssueLocation: {"Specify grid coordinates.", "Need a location."},
	IssueUnit:     {"Which unit?", "Specify team member."},
}

var eventCategories = []models.DialogueCategory{
	EventAirstrikeReady,
	EventAirstrikeCooldown,
	EventConfirmTarget,
	EventKillEnemy,
	EventKillFriendly,
	EventContact,
	EventUnderFire,
	EventVictory,
	EventDefeat,
}

// EventKinds 返回支持的事件类型
func EventKinds() []models.DialogueCategory {
	out := make([]models.DialogueCategory, len(eventCategories))
	copy(out, eventCategories)
	return out
}

// Templates 返回某个分类的模板副本
func Templates(category models.DialogueCategory) []string {
	pool := templateTable[category]
	out := make([]string, len(pool))
	copy(out, pool)
	return out
}

// IsEventKind 是否为已定义的事件类型
func IsEventKind(kind models.DialogueCategory) bool {
	for _, c := range eventCategories {
		if c == kind {
			return true
		}
	}
	return false
}
