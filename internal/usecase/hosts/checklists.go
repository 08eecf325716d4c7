package hosts

import (
	"fmt"

	"trend-launch/internal/domain"
)

func preLiveChecklist(launch domain.Launch, packs []domain.AssetPack) []string {
	items := []string{
		fmt.Sprintf("Изучить карточку товара %q и цену %s", launch.Product.Name, formatCents(launch.Product.SuggestedPriceCents)),
		"Проверить свет, звук и стабильность сети",
		"Подготовить образец товара для демонстрации",
	}
	for _, pack := range packs {
		if pack.Status != domain.AssetPackStatusReady {
			continue
		}
		items = append(items, fmt.Sprintf("Прочитать сценарий для %s (версия %d)", pack.Platform, pack.Version))
	}
	return append(items, "Согласовать с модератором закреплённые комментарии")
}

func duringLiveChecklist(launch domain.Launch) []string {
	items := make([]string, 0, len(domain.Segments)+1)
	for i, segment := range domain.Segments {
		items = append(items, fmt.Sprintf("%d. Провести сегмент %s", i+1, segment))
	}
	return append(items, fmt.Sprintf("Озвучить раскрытие рекламы для %q в начале и в конце", launch.Product.Name))
}

func postLiveChecklist() []string {
	return []string{
		"Отметить лучшие моменты для клипов",
		"Передать вопросы без ответа модератору",
		"Подтвердить итоговые продажи",
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
