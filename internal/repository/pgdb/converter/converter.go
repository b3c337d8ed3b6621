package converter

import (
	"github.com/capvault/capsearch/internal/domain"
)

// CapConverter преобразует сущности Cap между domain и моделью PostgreSQL.
type CapConverter interface {
	ToModel(entity *domain.Cap) *CapModel
	ToEntity(model *CapModel) *domain.Cap
}

// VariantConverter преобразует сущности Variant между domain и моделью PostgreSQL.
type VariantConverter interface {
	ToModel(entity *domain.Variant) *VariantModel
	ToEntity(model *VariantModel) *domain.Variant
}

type capConverter struct{}

func NewCapConverter() CapConverter {
	return capConverter{}
}

func (capConverter) ToModel(entity *domain.Cap) *CapModel {
	if entity == nil {
		return nil
	}

	return &CapModel{
		ID:         entity.ID,
		Name:       entity.Name,
		StorageKey: entity.StorageKey,
		CreatedAt:  entity.CreatedAt,
		UpdatedAt:  entity.UpdatedAt,
		IsArchived: entity.IsArchived,
	}
}

func (capConverter) ToEntity(model *CapModel) *domain.Cap {
	if model == nil {
		return nil
	}

	return &domain.Cap{
		ID:         model.ID,
		Name:       model.Name,
		StorageKey: model.StorageKey,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
		IsArchived: model.IsArchived,
	}
}

type variantConverter struct{}

func NewVariantConverter() VariantConverter {
	return variantConverter{}
}

func (variantConverter) ToModel(entity *domain.Variant) *VariantModel {
	if entity == nil {
		return nil
	}

	return &VariantModel{
		ID:         entity.ID,
		CapID:      entity.CapID,
		StorageKey: entity.StorageKey,
		Embedding:  entity.Embedding,
		CreatedAt:  entity.CreatedAt,
		UpdatedAt:  entity.UpdatedAt,
	}
}

func (variantConverter) ToEntity(model *VariantModel) *domain.Variant {
	if model == nil {
		return nil
	}

	return &domain.Variant{
		ID:         model.ID,
		CapID:      model.CapID,
		StorageKey: model.StorageKey,
		Embedding:  model.Embedding,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}
