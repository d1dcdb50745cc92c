package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/anjiri1684/zukih_store/models"
	"gorm.io/gorm"
)

const maxOrderNumberAttempts = 5

// GenerateUniqueOrderNumber returns an ORD-<unix millis><3 random digits> number not yet used by any payment.
func GenerateUniqueOrderNumber(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < maxOrderNumberAttempts; i++ {
		code := fmt.Sprintf("ORD-%d%03d", time.Now().UnixMilli(), seededRand.Intn(1000))

		var count int64
		if err := tx.Model(&models.Payment{}).Where("order_number = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique order number")
}
