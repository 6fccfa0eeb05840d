package service

import "CamKeeper/internal/model"

// Authenticated проверяет, что запрос пришёл от аутентифицированного субъекта.
func Authenticated(p *model.Principal) error {
	if p == nil || p.UserID == 0 {
		return ErrUnauthorized
	}
	return nil
}

// AuthorizeHardDelete разрешает физическое удаление владельцу камеры или суперпользователю.
func AuthorizeHardDelete(p *model.Principal, cam *model.Camera) error {
	if err := Authenticated(p); err != nil {
		return err
	}
	if p.UserID == cam.OwnerID || p.IsSuperuser {
		return nil
	}
	return ErrForbidden
}

// AuthorizeOperator — операции обслуживания индекса доступны только суперпользователю.
func AuthorizeOperator(p *model.Principal) error {
	if err := Authenticated(p); err != nil {
		return err
	}
	if !p.IsSuperuser {
		return ErrForbidden
	}
	return nil
}
