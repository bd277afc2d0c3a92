package decompose

import "github.com/ShayCichocki/waver/pkg/models"

// Levels groups tasks by dependency depth: level 0 holds tasks with no
// dependencies, level n tasks whose dependencies all sit in earlier levels.
// Tasks that can never be placed (cycles, dangling references) form a final
// level.
func Levels(tasks []*models.SubTask) [][]*models.SubTask {
	var levels [][]*models.SubTask
	remaining := append([]*models.SubTask(nil), tasks...)
	placed := make(map[string]bool, len(tasks))

	for len(remaining) > 0 {
		var level, next []*models.SubTask
		for _, task := range remaining {
			ready := true
			for _, dep := range task.Dependencies {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, task)
			} else {
				next = append(next, task)
			}
		}

		if len(level) == 0 {
			levels = append(levels, remaining)
			break
		}
		for _, task := range level {
			placed[task.ID] = true
		}
		levels = append(levels, level)
		remaining = next
	}
	return levels
}
