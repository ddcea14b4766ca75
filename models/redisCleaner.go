package models

import (
	"bitbucket.org/mmdatafocus/kitchenops_backend/config"
	"bitbucket.org/mmdatafocus/kitchenops_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list if exists
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Vendor) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Vendor](obj.ID)
}

func (obj Vendor) RemoveAllRedis() error {
	return nil
}

func (obj User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + obj.Username)
}

func (obj User) RemoveAllRedis() error {
	return nil
}
