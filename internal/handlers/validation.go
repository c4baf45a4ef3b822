package handlers

import "fmt"

// validateTownId はタウンIDのバリデーションを行います
// タウンIDが空の場合はエラーを返します
func validateTownId(townId string) error {
	if normalizeID(townId) == "" {
		return fmt.Errorf("townId required")
	}
	return nil
}

// validateAreaId はエリアIDのバリデーションを行います
func validateAreaId(areaId string) error {
	if normalizeID(areaId) == "" {
		return fmt.Errorf("areaId required")
	}
	return nil
}

// validateSessionToken はセッショントークンのバリデーションを行います
func validateSessionToken(token string) error {
	if normalizeID(token) == "" {
		return fmt.Errorf("session token required")
	}
	return nil
}
