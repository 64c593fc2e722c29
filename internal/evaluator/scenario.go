package evaluator

// 作业场景标识（读数元数据 scenario 字段）
const (
	ScenarioStructureFire = "structure_fire"
	ScenarioWildfire      = "wildfire"
	ScenarioHazmat        = "hazmat"
	ScenarioSearchRescue  = "search_rescue"
	ScenarioOverhaul      = "overhaul"
	ScenarioTraining      = "training"
	ScenarioRehab         = "rehab"
)

// moderateTempScenarios 温度 moderate 档位仅在这些作业场景下告警
// （37.5–37.9°C 属正常区间，38.0°C 起才进入 moderate 档）
var moderateTempScenarios = map[string]bool{
	ScenarioStructureFire: true,
	ScenarioWildfire:      true,
	ScenarioHazmat:        true,
	ScenarioOverhaul:      true,
}

// hydrationScenarios 补水提醒适用的高消耗/高热场景
var hydrationScenarios = map[string]bool{
	ScenarioStructureFire: true,
	ScenarioWildfire:      true,
	ScenarioOverhaul:      true,
	ScenarioTraining:      true,
	ScenarioRehab:         true,
}
