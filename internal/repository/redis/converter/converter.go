package converter

import (
	"github.com/capvault/capsearch/internal/usecase"
)

// CapInfoConverter преобразует DTO крышки между usecase и Redis-моделью.
type CapInfoConverter interface {
	ToRedisModel(entity *usecase.CapInfo) *CapInfoRedisModel
	ToUseCase(model *CapInfoRedisModel) *usecase.CapInfo
	ToArrRedisModel(entities []usecase.CapInfo) []CapInfoRedisModel
}

type capInfoConverter struct{}

func NewCapInfoConverter() CapInfoConverter {
	return capInfoConverter{}
}

func (capInfoConverter) ToRedisModel(entity *usecase.CapInfo) *CapInfoRedisModel {
	if entity == nil {
		return nil
	}

	return &CapInfoRedisModel{
		ID:         entity.ID,
		Name:       entity.Name,
		StorageKey: entity.StorageKey,
	}
}

func (capInfoConverter) ToUseCase(model *CapInfoRedisModel) *usecase.CapInfo {
	if model == nil {
		return nil
	}

	return &usecase.CapInfo{
		ID:         model.ID,
		Name:       model.Name,
		StorageKey: model.StorageKey,
	}
}

func (c capInfoConverter) ToArrRedisModel(entities []usecase.CapInfo) []CapInfoRedisModel {
	if entities == nil {
		return nil
	}

	models := make([]CapInfoRedisModel, 0, len(entities))
	for i := range entities {
		models = append(models, *c.ToRedisModel(&entities[i]))
	}

	return models
}
