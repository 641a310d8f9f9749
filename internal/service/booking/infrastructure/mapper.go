package infrastructure

import (
	"staybook/internal/service/booking/domain"
)

// ToDomainUser 将数据库模型转换为领域模型
func ToDomainUser(model *UserModel) *domain.User {
	if model == nil {
		return nil
	}
	return &domain.User{
		ID:              model.ID,
		Email:           model.Email,
		FirstName:       model.FirstName,
		LastName:        model.LastName,
		ProfileImageURL: model.ProfileImageURL,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// ToDomainPost 将数据库模型转换为领域模型，Tags 需要已经按 position 预加载
func ToDomainPost(model *PostModel) *domain.Post {
	if model == nil {
		return nil
	}
	tags := make([]string, 0, len(model.Tags))
	for _, t := range model.Tags {
		tags = append(tags, t.Tag)
	}
	return &domain.Post{
		ID:          model.ID,
		Title:       model.Title,
		Description: model.Description,
		ImageURL:    model.ImageURL,
		Tags:        tags,
		Price:       model.Price,
		CreatedAt:   model.CreatedAt,
	}
}

// FromInsertPost 用插入数据和服务端生成的字段构造数据库模型
func FromInsertPost(id string, in *domain.InsertPost, model *PostModel) {
	model.ID = id
	model.Title = in.Title
	model.Description = in.Description
	model.ImageURL = in.ImageURL
	model.Price = in.Price
	model.Tags = make([]PostTagModel, 0, len(in.Tags))
	for i, tag := range in.NormalizedTags() {
		model.Tags = append(model.Tags, PostTagModel{PostID: id, Position: i, Tag: tag})
	}
}

// ToDomainPromotion 将数据库模型转换为领域模型
func ToDomainPromotion(model *PromotionModel) *domain.Promotion {
	if model == nil {
		return nil
	}
	return &domain.Promotion{
		ID:                 model.ID,
		Code:               model.Code,
		Title:              model.Title,
		Description:        model.Description,
		DiscountPercentage: model.DiscountPercentage,
		ImageURL:           model.ImageURL,
		ValidUntil:         model.ValidUntil,
		CreatedAt:          model.CreatedAt,
	}
}

// FromInsertPromotion 用插入数据构造数据库模型
func FromInsertPromotion(id string, in *domain.InsertPromotion) *PromotionModel {
	return &PromotionModel{
		ID:                 id,
		Code:               in.Code,
		Title:              in.Title,
		Description:        in.Description,
		DiscountPercentage: in.DiscountPercentage,
		ImageURL:           in.ImageURL,
		ValidUntil:         in.ValidUntil.UTC(),
	}
}
