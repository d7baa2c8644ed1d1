package configdb

func (c *ConfigDB) GetCameraFromID(id int64) (*Camera, error) {
	camera := Camera{}
	if err := c.DB.First(&camera, id).Error; err != nil {
		return nil, err
	}
	return &camera, nil
}

func (c *ConfigDB) ListCameras() ([]Camera, error) {
	cameras := []Camera{}
	if err := c.DB.Find(&cameras).Error; err != nil {
		return nil, err
	}
	return cameras, nil
}
