package network

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const amiMappingKey = "ami"

// buildInstances places every instance in the first public subnet, with its own key pair and an instance profile
// for its role. The image is looked up per region from a template mapping.
func buildInstances(s *resources.Scope, instances map[string]config.Instance, roles RoleLookup, out *Outputs) error {
	out.Instances = make(map[string]*construct.Resource, len(instances))
	if len(instances) == 0 {
		return nil
	}
	if len(out.PublicSubnets) == 0 {
		return fmt.Errorf("instances need a public subnet")
	}
	subnet := out.PublicSubnets[0]

	for _, key := range resources.SortedKeys(instances) {
		inst := instances[key]

		role, err := roles.Role(inst.Role)
		if err != nil {
			return fmt.Errorf("instance %s: %w", key, err)
		}
		sg, ok := out.SecurityGroups[inst.SecurityGroup]
		if !ok {
			return fmt.Errorf("instance %s: unknown security group %s", key, inst.SecurityGroup)
		}

		keyPair, err := s.Add(resources.KeyPairType, key+"Key", construct.Properties{
			"KeyName": inst.KeyName,
			"KeyType": "rsa",
		})
		if err != nil {
			return err
		}
		profile, err := s.Add(resources.InstanceProfileType, key+"InstanceProfile", construct.Properties{
			"Roles": []any{role.Ref()},
		})
		if err != nil {
			return err
		}

		amiMap := make(map[string]map[string]any, len(inst.Ami))
		for region, ami := range inst.Ami {
			amiMap[region] = map[string]any{amiMappingKey: ami}
		}
		amis, err := s.AddMapping(key+"AmiMap", amiMap)
		if err != nil {
			return err
		}

		props := construct.Properties{
			"ImageId":            resources.FindInMap(amis, resources.Region(), amiMappingKey),
			"InstanceType":       inst.InstanceType,
			"KeyName":            keyPair.Ref(),
			"AvailabilityZone":   subnet.AvailabilityZone,
			"SubnetId":           subnet.Resource.Ref(),
			"SecurityGroupIds":   []any{sg.Attr("GroupId")},
			"IamInstanceProfile": profile.Ref(),
			"Tags":               resources.NameTag(inst.InstanceName),
		}
		if inst.Volume.DeviceName != "" {
			props["BlockDeviceMappings"] = []any{map[string]any{
				"DeviceName": inst.Volume.DeviceName,
				"Ebs": map[string]any{
					"VolumeSize":          inst.Volume.SizeGb,
					"VolumeType":          inst.Volume.VolumeType,
					"DeleteOnTermination": inst.Volume.DeleteOnTermination,
				},
			}}
		}
		r, err := s.Add(resources.InstanceType, key+"Instance", props, resources.DependsOn(role.ID))
		if err != nil {
			return err
		}
		out.Instances[key] = r
	}
	return nil
}
